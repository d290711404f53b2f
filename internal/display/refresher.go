package display

// NullRefresher discards frames. Used for the "null" display type and
// in tests where no physical panel is attached.
type NullRefresher struct{}

func (NullRefresher) Refresh(buf []byte) error { return nil }
