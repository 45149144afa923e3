package xserr

import "testing"

func TestWireString(t *testing.T) {
	cases := []struct {
		code Code
		want string
	}{
		{CodeOK, ""},
		{CodeEINVAL, "EINVAL"},
		{CodeENOENT, "ENOENT"},
		{CodeENOMEM, "ENOMEM"},
		{CodeEBUSY, "EBUSY"},
		{CodeENOSYS, "ENOSYS"},
		{CodeE2BIG, "E2BIG"},
	}
	for _, c := range cases {
		e := New(c.code, "")
		if got := e.WireString(); got != c.want {
			t.Errorf("WireString(%v) = %q, want %q", c.code, got, c.want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	e := New(CodeENOENT, "no such path")
	if got, want := e.Error(), "ENOENT: no such path"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := New(CodeEBUSY, "")
	if got, want := bare.Error(), "EBUSY"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAsXSError(t *testing.T) {
	if AsXSError(nil) != nil {
		t.Error("AsXSError(nil) should be nil")
	}

	if AsXSError(ErrNotFound) != ErrNotFound {
		t.Error("AsXSError should pass through an existing *Error unchanged")
	}

	wrapped := AsXSError(errPlain{"boom"})
	if wrapped.Code != CodeEINVAL {
		t.Errorf("AsXSError should wrap unknown errors as EINVAL, got %v", wrapped.Code)
	}
}

type errPlain struct{ msg string }

func (e errPlain) Error() string { return e.msg }
