package hotkey

import "testing"

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Accelerator
		wantErr bool
	}{
		{in: "Ctrl+Alt+S", want: Accelerator{Mods: ModCtrl | ModAlt, Key: "S"}},
		{in: "alt + space", want: Accelerator{Mods: ModAlt, Key: "Space"}},
		{in: "Cmd+Shift+F12", want: Accelerator{Mods: ModSuper | ModShift, Key: "F12"}},
		{in: "Option+Esc", want: Accelerator{Mods: ModAlt, Key: "Escape"}},
		{in: "control+7", want: Accelerator{Mods: ModCtrl, Key: "7"}},
		{in: "F1", want: Accelerator{Key: "F1"}},
		{in: "", wantErr: true},
		{in: "Ctrl+Alt", wantErr: true},
		{in: "Ctrl++S", wantErr: true},
		{in: "Ctrl+A+B", wantErr: true},
		{in: "Ctrl+F13", wantErr: true},
		{in: "Ctrl+F01", wantErr: true},
		{in: "Hyper+S", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAcceleratorString(t *testing.T) {
	t.Parallel()

	a, err := Parse("shift+alt+ctrl+super+x")
	if err != nil {
		t.Fatal(err)
	}
	if got, want := a.String(), "Ctrl+Alt+Shift+Super+X"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := (Accelerator{Key: "Space"}).String(); got != "Space" {
		t.Errorf("String() = %q, want Space", got)
	}
}
