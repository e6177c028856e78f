// Package log is a thin, module-scoped logger sitting on top of logrus.
//
// Every package in the bridge logs through a Module constant rather than
// the package-level logrus API directly, so a caller can enable verbose
// logging for, say, only the voice allocator ("--log voice") without
// drowning in hardware-buffer chatter.
package log

type ModuleMask uint64
type Module uint

const ModuleMaskAll ModuleMask = 0xFFFFFFFFFFFFFFFF

const (
	ModCore Module = iota + 1 // router / bridge lifecycle
	ModHW                     // hardware buffer, shadow state, serial packer
	ModDirect                 // direct mode translation
	ModVoice                  // voice allocator
	ModSysEx                  // sysex parsing across direct/voice
	ModConfig                 // config load/save

	endStandardMods
)

var modCount = endStandardMods

var modDebugMask ModuleMask

var modNames = []string{
	"<error>", "core", "hw", "direct", "voice", "sysex", "config",
}

// NewModule registers an additional module and returns its handle. Standard
// modules above cover the bridge itself; callers embedding this package in
// a larger tool can register their own.
func NewModule(name string) Module {
	mod := modCount
	modCount++
	modNames = append(modNames, name)
	return mod
}

func ModuleByName(name string) (Module, bool) {
	for idx, s := range modNames {
		if s == name {
			return Module(idx), true
		}
	}
	return 0, false
}

func ModuleNames() []string {
	return modNames[1:]
}

func EnableDebugModules(mask ModuleMask) {
	modDebugMask |= mask
}

func DisableDebugModules(mask ModuleMask) {
	modDebugMask &^= mask
}

func Disable() {
	modDebugMask = 0
}

func (mod Module) Mask() ModuleMask {
	return 1 << ModuleMask(mod)
}

func (mod Module) Enabled(level Level) bool {
	return level <= WarnLevel || modDebugMask&mod.Mask() != 0
}

func (mod Module) name() string {
	if int(mod) < len(modNames) {
		return modNames[mod]
	}
	return "<error>"
}

func (mod Module) logz(lvl Level, msg string) *EntryZ {
	if !mod.Enabled(lvl) {
		return nil
	}
	e := newEntryZ()
	e.lvl = lvl
	e.msg = msg
	e.mod = mod
	return e
}

func (mod Module) DebugZ(msg string) *EntryZ { return mod.logz(DebugLevel, msg) }
func (mod Module) InfoZ(msg string) *EntryZ  { return mod.logz(InfoLevel, msg) }
func (mod Module) WarnZ(msg string) *EntryZ  { return mod.logz(WarnLevel, msg) }
func (mod Module) ErrorZ(msg string) *EntryZ { return mod.logz(ErrorLevel, msg) }
func (mod Module) FatalZ(msg string) *EntryZ { return mod.logz(FatalLevel, msg) }
func (mod Module) PanicZ(msg string) *EntryZ { return mod.logz(PanicLevel, msg) }

func (mod Module) Debugf(format string, args ...any) { mod.logf(DebugLevel, format, args...) }
func (mod Module) Infof(format string, args ...any)  { mod.logf(InfoLevel, format, args...) }
func (mod Module) Warnf(format string, args ...any)  { mod.logf(WarnLevel, format, args...) }
func (mod Module) Errorf(format string, args ...any) { mod.logf(ErrorLevel, format, args...) }
func (mod Module) Fatalf(format string, args ...any) { mod.logf(FatalLevel, format, args...) }
