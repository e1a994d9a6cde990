package hotkey

// FakeHotkey is driven by tests instead of a keyboard.
type FakeHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}

	RegisterErr error
	registered  bool
}

func NewFake() *FakeHotkey {
	return &FakeHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
	}
}

func (f *FakeHotkey) Register() error {
	if f.RegisterErr != nil {
		return f.RegisterErr
	}
	f.registered = true
	return nil
}

func (f *FakeHotkey) Unregister()              { f.registered = false }
func (f *FakeHotkey) Registered() bool         { return f.registered }
func (f *FakeHotkey) Keydown() <-chan struct{} { return f.keydown }
func (f *FakeHotkey) Keyup() <-chan struct{}   { return f.keyup }

func (f *FakeHotkey) SimKeydown() { f.keydown <- struct{}{} }
func (f *FakeHotkey) SimKeyup()   { f.keyup <- struct{}{} }
