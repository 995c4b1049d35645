package udpipe

import "fmt"

// Option configures an optional pipeline stage (tagger or parser).
//
// The zero value is Default. Explicit("") disables the stage, which is why an empty string can not double as
// "use the default".
type Option struct {
	value    string
	explicit bool
}

// Default lets the pipeline use its built-in behaviour for the stage.
var Default = Option{}

// Explicit configures the stage with opts. An empty opts skips the stage.
func Explicit(opts string) Option {
	return Option{value: opts, explicit: true}
}

// Skip is Explicit("").
var Skip = Explicit("")

// IsDefault reports whether o is Default.
func (o Option) IsDefault() bool {
	return !o.explicit
}

// Enabled reports whether the stage runs at all.
func (o Option) Enabled() bool {
	return !o.explicit || o.value != ""
}

// Value returns the explicit options. It is empty for Default.
func (o Option) Value() string {
	return o.value
}

func (o Option) String() string {
	switch {
	case !o.explicit:
		return "default"
	case o.value == "":
		return "none"
	default:
		return fmt.Sprintf("%q", o.value)
	}
}
