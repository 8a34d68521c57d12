package fake

// Flags is a fake implementation of the flags of a command.
//
// - implements cli.Flags
type Flags map[string]interface{}

// String implements cli.Flags.
func (f Flags) String(name string) string {
	v, _ := f[name].(string)
	return v
}

// StringSlice implements cli.Flags.
func (f Flags) StringSlice(name string) []string {
	v, _ := f[name].([]string)
	return v
}

// Path implements cli.Flags.
func (f Flags) Path(name string) string {
	return f.String(name)
}

// Bool implements cli.Flags.
func (f Flags) Bool(name string) bool {
	v, _ := f[name].(bool)
	return v
}

// IsSet implements cli.Flags.
func (f Flags) IsSet(name string) bool {
	_, found := f[name]
	return found
}
