package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"retrowave/config"
	"retrowave/log"
	"retrowave/router"
)

func main() {
	cli := parseArgs(os.Args[1:])

	if cli.mode == portsMode {
		runPorts()
		return
	}
	runBridge(cli.Bridge)
}

// runPorts stands in for the out-of-scope serial/MIDI port enumeration:
// the core never probes hardware, it just trusts the paths it's given.
func runPorts() {
	os.Stdout.WriteString("port discovery is not implemented; pass --serial and --midi explicitly\n")
}

func runBridge(b Bridge) {
	cfg := config.LoadOrDefault()
	if b.SerialPort != "" {
		cfg.SerialPort = b.SerialPort
	}
	if b.MIDIPort != "" {
		cfg.MIDIPort = b.MIDIPort
	}
	if b.Virtual {
		cfg.MIDIVirtual = true
	}

	serial, err := openSerial(cfg.SerialPort)
	checkf(err, "failed to open serial port %q", cfg.SerialPort)
	defer serial.Close()

	midiIn, err := openMIDI(cfg)
	checkf(err, "failed to open MIDI port %q", cfg.MIDIPort)
	defer midiIn.Close()

	var trace *outfile
	if b.Trace != nil {
		trace = b.Trace
		defer trace.Close()
	}

	replies := make(chan []byte, 16)
	bridge := router.New(cfg, serial, func(msg []byte) {
		select {
		case replies <- msg:
		default:
			log.ModCore.WarnZ("reply dropped, channel full").End()
		}
	})
	if b.Bank {
		bridge.SetBankMode(true)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-replies:
				if trace != nil {
					traceMessage(trace, "<-", msg)
				}
				// Reply frames (patch dumps, voice/percussion query
				// echoes) have nowhere to go without a MIDI output port;
				// logging keeps them visible until one is wired in.
				log.ModCore.DebugZ("sysex reply").Int("len", len(msg)).End()
			}
		}
	}()

	go readMIDI(ctx, midiIn, bridge, trace)

	log.ModCore.InfoZ("bridge running").String("serial", cfg.SerialPort).String("mode", string(cfg.Mode)).End()
	if err := bridge.Run(ctx); err != nil {
		log.ModCore.ErrorZ("bridge exited with error").Err(err).End()
	}

	cfg = bridge.Snapshot(cfg)
	if err := config.Save(cfg); err != nil {
		log.ModCore.WarnZ("failed to save config").Err(err).End()
	}
}

// openSerial opens the configured serial device. There's no serial
// transport in the dependency stack, so this treats it as a plain file:
// a real character device, a FIFO set up by an external bridge, or a
// regular file for offline capture.
func openSerial(path string) (io.WriteCloser, error) {
	if path == "" || path == "stdout" {
		return nopCloser{os.Stdout}, nil
	}
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0644)
}

// openMIDI opens the configured MIDI input. Like the serial side, there's
// no MIDI transport in the dependency stack (§1 Non-goals); this reads a
// raw MIDI byte stream from a file, FIFO, or stdin when virtual.
func openMIDI(cfg config.Config) (io.ReadCloser, error) {
	if cfg.MIDIVirtual || cfg.MIDIPort == "" || cfg.MIDIPort == "stdin" {
		return os.Stdin, nil
	}
	return os.Open(cfg.MIDIPort)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func traceMessage(w io.Writer, dir string, msg []byte) {
	buf := make([]byte, 0, len(msg)*3+4)
	buf = append(buf, dir...)
	buf = append(buf, ' ')
	const hex = "0123456789abcdef"
	for _, b := range msg {
		buf = append(buf, hex[b>>4], hex[b&0xF], ' ')
	}
	buf = append(buf, '\n')
	w.Write(buf)
}
