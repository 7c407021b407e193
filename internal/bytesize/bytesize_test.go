package bytesize

import (
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain zero", "0", 0, false},
		{"plain bytes", "1024", 1024, false},
		{"bytes suffix", "1024B", 1024, false},

		// Binary units (×1024)
		{"kibibytes Ki", "512Ki", 512 * KiB, false},
		{"kibibytes KiB", "512KiB", 512 * KiB, false},
		{"mebibytes Mi", "1Mi", MiB, false},
		{"mebibytes MiB", "1MiB", MiB, false},
		{"gibibytes Gi", "2Gi", 2 * GiB, false},
		{"tebibytes Ti", "1Ti", TiB, false},

		// Decimal units (×1000)
		{"kilobytes KB", "1KB", KB, false},
		{"megabytes MB", "100MB", 100 * MB, false},
		{"gigabytes GB", "1GB", GB, false},
		{"terabytes TB", "1TB", TB, false},

		// Case and whitespace tolerance
		{"lowercase mi", "1mi", MiB, false},
		{"uppercase MI", "1MI", MiB, false},
		{"surrounding space", "  1Mi  ", MiB, false},
		{"space between", "1 Mi", MiB, false},

		// Fractional
		{"float mebibytes", "1.5Mi", ByteSize(1.5 * float64(MiB)), false},
		{"float gibibytes", "0.5Gi", ByteSize(0.5 * float64(GiB)), false},

		// Error cases
		{"empty string", "", 0, true},
		{"whitespace only", "   ", 0, true},
		{"invalid unit", "1Xi", 0, true},
		{"negative number", "-1Mi", 0, true},
		{"no number", "Mi", 0, true},
		{"garbage", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestByteSize_UnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"unit", "1Mi", MiB, false},
		{"numeric", "1024", 1024, false},
		{"invalid", "invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b ByteSize
			err := b.UnmarshalText([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Errorf("UnmarshalText(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && b != tt.want {
				t.Errorf("UnmarshalText(%q) = %d, want %d", tt.input, b, tt.want)
			}
		})
	}
}

func TestByteSize_String(t *testing.T) {
	tests := []struct {
		name  string
		input ByteSize
		want  string
	}{
		{"bytes", 512, "512B"},
		{"kibibytes", 2 * KiB, "2.00KiB"},
		{"mebibytes", 100 * MiB, "100.00MiB"},
		{"gibibytes", GiB, "1.00GiB"},
		{"fractional gibibytes", ByteSize(1.5 * float64(GiB)), "1.50GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.input.String(); got != tt.want {
				t.Errorf("ByteSize(%d).String() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
