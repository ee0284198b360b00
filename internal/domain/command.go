package domain

// Command identifies a dispatcher operation.
type Command int

const (
	CommandUnknown Command = iota
	CommandSelectFile
	CommandSaveConfig
	CommandLoadConfig
	CommandLaunchWorker
	CommandWorkerStatus
)

var commandNames = map[Command]string{
	CommandSelectFile:   "select-file",
	CommandSaveConfig:   "save-config",
	CommandLoadConfig:   "load-config",
	CommandLaunchWorker: "launch-worker",
	CommandWorkerStatus: "worker-status",
}

// ParseCommand maps a wire name to its Command. Unrecognized names map to CommandUnknown.
func ParseCommand(name string) Command {
	for c, n := range commandNames {
		if n == name {
			return c
		}
	}
	return CommandUnknown
}

// String returns the wire name of the command.
func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return "unknown"
}

// Commands returns every known command.
func Commands() []Command {
	return []Command{
		CommandSelectFile,
		CommandSaveConfig,
		CommandLoadConfig,
		CommandLaunchWorker,
		CommandWorkerStatus,
	}
}
