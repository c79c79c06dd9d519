package imagesvc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mkrupp/homecase-imagekv/internal/domain"
	"github.com/mkrupp/homecase-imagekv/internal/transform"
)

var (
	// ErrUnknownCommand is returned for a command name that is not registered.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrWrongArity is returned when a command receives the wrong number of arguments.
	ErrWrongArity = errors.New("wrong number of arguments")
)

// CommandPrefix is the optional namespace in front of every command name.
const CommandPrefix = "IMAGE."

// Command names.
const (
	CommandRotate    = "ROTATE"
	CommandSwirl     = "SWIRL"
	CommandBlur      = "BLUR"
	CommandThumbnail = "THUMBNAIL"
	CommandType      = "TYPE"
)

type commandSpec struct {
	// arity counts every argument including the command name
	arity int
	// parse builds the operator from the arguments following the key; nil for TYPE
	parse func(args []string) (transform.Operator, error)
}

//nolint:gochecknoglobals
var commandSpecs = map[string]commandSpec{
	CommandRotate: {arity: 3, parse: func(args []string) (transform.Operator, error) {
		degrees, err := parseDouble(args[0])

		return transform.Rotate(degrees), err
	}},
	CommandSwirl: {arity: 3, parse: func(args []string) (transform.Operator, error) {
		degrees, err := parseDouble(args[0])

		return transform.Swirl(degrees), err
	}},
	CommandBlur: {arity: 4, parse: func(args []string) (transform.Operator, error) {
		radius, err := parseDouble(args[0])
		if err != nil {
			return transform.Operator{}, err
		}

		sigma, err := parseDouble(args[1])

		return transform.Blur(radius, sigma), err
	}},
	CommandThumbnail: {arity: 4, parse: func(args []string) (transform.Operator, error) {
		width, err := parsePositiveInt(args[0])
		if err != nil {
			return transform.Operator{}, err
		}

		height, err := parsePositiveInt(args[1])

		return transform.Thumbnail(width, height), err
	}},
	CommandType: {arity: 2, parse: nil},
}

// Command is a parsed invocation.
type Command struct {
	// Name is the canonical command name without prefix
	Name string
	Key  domain.BlobKey
	// Args holds the raw arguments after the key
	Args []string
	// Op is the operator of a mutating command
	Op transform.Operator
}

// Mutating reports whether the command rewrites the key.
func (cmd Command) Mutating() bool {
	return cmd.Name != CommandType
}

// NormalizeCommandName upper-cases name and strips the optional prefix.
func NormalizeCommandName(name string) string {
	name = strings.ToUpper(name)

	return strings.TrimPrefix(name, CommandPrefix)
}

// ParseCommand validates args, the command name followed by its arguments.
// It never touches the store.
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, fmt.Errorf("%w: ''", ErrUnknownCommand)
	}

	name := NormalizeCommandName(args[0])

	spec, ok := commandSpecs[name]
	if !ok {
		return Command{}, fmt.Errorf("%w: '%s'", ErrUnknownCommand, args[0])
	}

	if len(args) != spec.arity {
		return Command{}, fmt.Errorf("%w for '%s' command", ErrWrongArity, args[0])
	}

	cmd := Command{
		Name: name,
		Key:  domain.BlobKey(args[1]),
		Args: args[2:],
		Op:   transform.Operator{}, //nolint:exhaustruct
	}

	if cmd.Key == "" {
		return cmd, fmt.Errorf("%w: %w", ErrInvalidArguments, domain.ErrNoKey)
	}

	if spec.parse == nil {
		return cmd, nil
	}

	op, err := spec.parse(cmd.Args)
	if err != nil {
		return cmd, err
	}

	if err := op.Validate(); err != nil {
		return cmd, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}

	cmd.Op = op

	return cmd, nil
}

// commandErrorReply converts a ParseCommand error into the reply sent to the client.
func commandErrorReply(args []string, err error) domain.Reply {
	var typed string
	if len(args) > 0 {
		typed = args[0]
	}

	switch {
	case errors.Is(err, ErrUnknownCommand):
		return domain.ErrorReply(domain.CodeUnknownCommand, fmt.Sprintf("ERR unknown command '%s'", typed))
	case errors.Is(err, ErrWrongArity):
		return domain.ErrorReply(domain.CodeArgument,
			fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(typed)))
	default:
		return domain.ErrorReply(domain.CodeArgument, domain.MsgInvalidArguments)
	}
}
