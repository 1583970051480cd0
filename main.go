package main

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/vsm-go/ucs-core/config"
	"github.com/vsm-go/ucs-core/device"
	"github.com/vsm-go/ucs-core/message"
	"github.com/vsm-go/ucs-core/router"
	"github.com/vsm-go/ucs-core/transport"
)

// demoDevice is a minimal device.Device used to exercise the core from the
// command line; a real embedding program supplies its own.
type demoDevice struct {
	sessionID uint32
	mutex     sync.Mutex
}

func (d *demoDevice) SessionID() uint32 {
	return d.sessionID
}

func (d *demoDevice) Dispatch(f func()) error {
	go func() {
		d.mutex.Lock()
		defer d.mutex.Unlock()
		f()
	}()
	return nil
}

func (d *demoDevice) PopulateRegistration(reg *message.RegisterDevice) {
	reg.Name = "demo-vehicle"
	reg.SerialNumber = "SN-0001"
	reg.Model = "demo"
}

func (d *demoDevice) OnUcsMessage(msg *message.VsmMessage, complete func(*message.VsmMessage)) {
	log.Printf("demoDevice: device_id=%d: received msg=%+v", d.sessionID, msg)
	if complete != nil {
		complete(
			&message.VsmMessage{
				DeviceResponse: &message.DeviceResponse{
					Code: message.StatusOK,
				},
			},
		)
	}
}

func (d *demoDevice) OnUcsInfo(infos []device.UcsInfo) {
	log.Printf("demoDevice: device_id=%d: ucs peer set updated, count=%d", d.sessionID, len(infos))
}

func test1() {
	if len(os.Args) <= 1 {
		log.Printf("test1: must specify listen address, e.g. localhost:8911")
		return
	}

	c := &config.Config{
		SelfAddress:  os.Args[1],
		VersionMajor: config.SupportedVersionMajor,
		VersionMinor: config.SupportedVersionMinor,
		VersionBuild: "test1",

		KeepAliveTimeout: 0,

		LogPrefix: "test1",
		LogDebug:  true,
	}

	detector, err := transport.NewServer(
		c.SelfAddress,
		0,
		0,
		c.LogPrefix,
		c.LogDebug,
	)
	if err != nil {
		panic(err)
	}

	r, err := router.NewCore(c, detector)
	if err != nil {
		panic(err)
	}

	err = r.RegisterDevice(&demoDevice{sessionID: 1})
	if err != nil {
		log.Printf("test1: failed to register demo device, err=%s", err.Error())
	}

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigch // wait
	log.Printf("test1: received signal %s, exiting", sig.String())

	r.UnregisterDevice(1)
	r.Shutdown()
	detector.Shutdown()
}

func main() {
	// enable microsecond and file line logging
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	test1()
}
