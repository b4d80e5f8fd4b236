package ffi

// Typed wrappers over Call, one per shape.

// StringFunc calls char* f(char*).
func (b *Binding) StringFunc(export, a string) (string, error) {
	r, err := b.Call(export, StringToString, a)
	return r.Str, err
}

// StringFunc2 calls char* f(char*, char*).
func (b *Binding) StringFunc2(export, a, c string) (string, error) {
	r, err := b.Call(export, String2ToString, a, c)
	return r.Str, err
}

// StringFunc3 calls char* f(char*, char*, char*).
func (b *Binding) StringFunc3(export, a, c, d string) (string, error) {
	r, err := b.Call(export, String3ToString, a, c, d)
	return r.Str, err
}

// StringFunc4 calls char* f(char*, char*, char*, char*).
func (b *Binding) StringFunc4(export, a, c, d, e string) (string, error) {
	r, err := b.Call(export, String4ToString, a, c, d, e)
	return r.Str, err
}

// StringFunc5 calls char* f(char*, char*, char*, char*, char*).
func (b *Binding) StringFunc5(export, a, c, d, e, f string) (string, error) {
	r, err := b.Call(export, String5ToString, a, c, d, e, f)
	return r.Str, err
}

// StringIntFunc calls char* f(char*, int64).
func (b *Binding) StringIntFunc(export, a string, n int64) (string, error) {
	r, err := b.Call(export, StringIntToString, a, n)
	return r.Str, err
}

// StringIntIntFunc calls char* f(char*, int64, int64).
func (b *Binding) StringIntIntFunc(export, a string, n, m int64) (string, error) {
	r, err := b.Call(export, StringIntIntToString, a, n, m)
	return r.Str, err
}

// StringIntIntIntFunc calls char* f(char*, int64, int64, int64).
func (b *Binding) StringIntIntIntFunc(export, a string, n, m, k int64) (string, error) {
	r, err := b.Call(export, StringIntIntIntToString, a, n, m, k)
	return r.Str, err
}

// VoidFunc calls void f(void).
func (b *Binding) VoidFunc(export string) error {
	_, err := b.Call(export, Void)
	return err
}

// VoidStringFunc calls void f(char*).
func (b *Binding) VoidStringFunc(export, a string) error {
	_, err := b.Call(export, StringToVoid, a)
	return err
}

// VoidString2Func calls void f(char*, char*).
func (b *Binding) VoidString2Func(export, a, c string) error {
	_, err := b.Call(export, String2ToVoid, a, c)
	return err
}

// VoidStringBoolFunc calls void f(char*, uint8).
func (b *Binding) VoidStringBoolFunc(export, a string, v bool) error {
	_, err := b.Call(export, StringBoolToVoid, a, v)
	return err
}

// VoidBoolFunc calls void f(uint8).
func (b *Binding) VoidBoolFunc(export string, v bool) error {
	_, err := b.Call(export, BoolToVoid, v)
	return err
}

// VoidStringIntFunc calls void f(char*, int64).
func (b *Binding) VoidStringIntFunc(export, a string, n int64) error {
	_, err := b.Call(export, StringIntToVoid, a, n)
	return err
}

// VoidString3Int2Func calls void f(char*, char*, char*, int64, int64).
func (b *Binding) VoidString3Int2Func(export, a, c, d string, n, m int64) error {
	_, err := b.Call(export, String3Int2ToVoid, a, c, d, n, m)
	return err
}

// BoolFunc calls uint8 f(void).
func (b *Binding) BoolFunc(export string) (bool, error) {
	r, err := b.Call(export, VoidToBool)
	return r.Bool, err
}

// IntFunc calls int64 f(void).
func (b *Binding) IntFunc(export string) (int64, error) {
	r, err := b.Call(export, VoidToInt)
	return r.Int, err
}
