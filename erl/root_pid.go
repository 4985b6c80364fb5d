package erl

import (
	"fmt"

	"github.com/uberbrodt/parent-go/erl/exitreason"
)

var rootPID PID

// rootProc always exists and simply logs messages sent to it. It stands in
// as the parent for processes started at the top of an application.
func init() {
	rootPID = Spawn(&rootProc{})
	ProcessFlag(rootPID, TrapExit, true)
}

type rootProc struct{}

func (rp *rootProc) Receive(self PID, inbox <-chan any) error {
	for anymsg := range inbox {
		switch msg := anymsg.(type) {
		case ExitMsg:
			if !msg.Link {
				Logger.Printf("RootPID received an exit signal with reason: %v", msg.Reason)
				return exitreason.Exception(fmt.Errorf("RootPID received an exit signal with reason: %w", msg.Reason))
			}
		default:
			Logger.Printf("rootProc received: %+v", msg)
		}
	}
	return nil
}

func RootPID() PID {
	return rootPID
}
