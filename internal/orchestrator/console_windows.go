//go:build windows

package orchestrator

import "golang.org/x/sys/windows"

const (
	ctrlCEvent        = 0
	ctrlBreakEvent    = 1
	ctrlCloseEvent    = 2
	ctrlLogoffEvent   = 5
	ctrlShutdownEvent = 6
)

var (
	kernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procSetConsoleCtrlHandler = kernel32.NewProc("SetConsoleCtrlHandler")
)

// InstallConsoleControlHandler registers a handler that calls l.Stop() for
// every shutdown-shaped console event (spec.md §4.7's "Ctrl-C, close,
// logoff, shutdown"), matching the retrieval pack's SetConsoleCtrlHandler
// binding style. Callbacks created by windows.NewCallback are never
// released, so the handler stays valid for the lifetime of the process.
func (l *Loop) InstallConsoleControlHandler() {
	handler := windows.NewCallback(func(ctrlType uint32) uintptr {
		switch ctrlType {
		case ctrlCEvent, ctrlBreakEvent, ctrlCloseEvent, ctrlLogoffEvent, ctrlShutdownEvent:
			l.Stop()
			return 1
		}
		return 0
	})
	procSetConsoleCtrlHandler.Call(handler, 1)
}
