package hooking

import (
	"github.com/pkg/errors"
)

// Kind is the kind of an execution step.
type Kind uint8

// The kinds of execution steps that can be observed.
const (
	KindCall Kind = iota + 1
	KindReturn
	KindLine
	KindNativeCall
	KindNativeReturn
	KindBlockCall
	KindBlockReturn
)

var kindNames = map[Kind]string{
	KindCall:         "call",
	KindReturn:       "return",
	KindLine:         "line",
	KindNativeCall:   "c_call",
	KindNativeReturn: "c_return",
	KindBlockCall:    "b_call",
	KindBlockReturn:  "b_return",
}

// A list of hook poses, one per Kind.
var (
	HookPosCall         = &HookPos{Name: "Call"}
	HookPosReturn       = &HookPos{Name: "Return"}
	HookPosLine         = &HookPos{Name: "Line"}
	HookPosNativeCall   = &HookPos{Name: "NativeCall"}
	HookPosNativeReturn = &HookPos{Name: "NativeReturn"}
	HookPosBlockCall    = &HookPos{Name: "BlockCall"}
	HookPosBlockReturn  = &HookPos{Name: "BlockReturn"}
)

var kindPoses = map[Kind]*HookPos{
	KindCall:         HookPosCall,
	KindReturn:       HookPosReturn,
	KindLine:         HookPosLine,
	KindNativeCall:   HookPosNativeCall,
	KindNativeReturn: HookPosNativeReturn,
	KindBlockCall:    HookPosBlockCall,
	KindBlockReturn:  HookPosBlockReturn,
}

// Pos returns the hook position events of this kind fire at.
func (k Kind) Pos() *HookPos {
	return kindPoses[k]
}

// String returns the event name, such as "call" or "c_return".
func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return "unknown"
	}

	return name
}

// IsValid returns true if k is one of the declared kinds.
func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, errors.Errorf("invalid event kind %d", k)
	}

	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}

	*k = parsed

	return nil
}

// ParseKind converts an event name to a Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}

	return 0, errors.Errorf("unknown event kind %q", name)
}
