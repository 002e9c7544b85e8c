package recovery

// Strategy decides how validation reacts to recoverable anomalies, such as
// ICO directory fields that hint at a cursor resource instead of an icon.
type Strategy interface {
	OnError(err error, location Location) Action
}

type Location struct {
	ByteOffset int64
	ImageIndex int
	Component  string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionWarn
)
