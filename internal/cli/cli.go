package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandReport        Command = "report"
	CommandPress         Command = "press"
	CommandRelease       Command = "release"
	CommandPointerCancel Command = "pointer-cancel"
	CommandDictate       Command = "dictate"
	CommandText          Command = "text"
	CommandDetach        Command = "detach"
	CommandDiscard       Command = "discard"
	CommandSubmit        Command = "submit"
	CommandStatus        Command = "status"
	CommandCancel        Command = "cancel"
	CommandDevices       Command = "devices"
	CommandDoctor        Command = "doctor"
	CommandVersion       Command = "version"
	CommandHelp          Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandReport:        {},
	CommandPress:         {},
	CommandRelease:       {},
	CommandPointerCancel: {},
	CommandDictate:       {},
	CommandText:          {},
	CommandDetach:        {},
	CommandDiscard:       {},
	CommandSubmit:        {},
	CommandStatus:        {},
	CommandCancel:        {},
	CommandDevices:       {},
	CommandDoctor:        {},
	CommandVersion:       {},
	CommandHelp:          {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Text       string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			// The text command consumes the remaining arguments verbatim.
			if cmd == CommandText {
				rest := args[i+1:]
				if len(rest) == 0 {
					return Parsed{}, errors.New("text command requires the report text")
				}
				parsed.Text = strings.Join(rest, " ")
				return parsed, nil
			}

			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  report          Run the capture session owner (holds the control socket)
  press           Forward a pointer press to the running session
  release         Forward a pointer release (tap = photo, hold end = stop video)
  pointer-cancel  Abandon the current press without capturing
  dictate         Toggle voice dictation; stopping returns the transcript
  text TEXT       Set the report text directly
  detach          Remove the current attachment, keeping the text
  discard         Drop the draft report and any attachment
  submit          Submit the draft report
  status          Print current session state
  cancel          End the running session without submitting
  devices         List available audio input devices
  doctor          Run configuration and environment checks
  version         Print version information
  help            Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/roadwatch/config.conf)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
