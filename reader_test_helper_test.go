package arwriter

// fakeReader builds an ObjectReader whose symbol list is fixed in
// advance, for tests that need a member's symbols without parsing a
// real object file.
func fakeReader(symbols ...string) *ObjectReader {
	return &ObjectReader{
		GetSymbols: func(buf []byte, emit func(name []byte) error) (bool, error) {
			for _, s := range symbols {
				if err := emit([]byte(s)); err != nil {
					return true, err
				}
			}
			return true, nil
		},
		Is64BitObjectFile:       func(buf []byte) bool { return false },
		IsECObjectFile:          func(buf []byte) bool { return false },
		GetXCOFFMemberAlignment: func(buf []byte) uint32 { return 2 },
	}
}
