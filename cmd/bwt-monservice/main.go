package main

import (
	"bwt-monservice/cmd/bwt-monservice/commands"
	"bwt-monservice/pkg/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
