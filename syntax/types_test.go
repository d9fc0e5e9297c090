package syntax

import "testing"

func TestTypeString(t *testing.T) {
	i32 := I32
	tests := []struct {
		ty   Type
		want string
	}{
		{I32, "i32"},
		{F64, "f64"},
		{Bool, "bool"},
		{Str, "str"},
		{Any, "any"},
		{HT(F64), "HT(f64)"},
		{Array(I32), "Array(i32)"},
		{Array(HT(Str)), "Array(HT(str))"},
		{Fn([]Type{I32, Str}, &i32), "(i32, str) -> i32"},
		{Fn(nil, nil), "()"},
	}
	for _, tt := range tests {
		if got := tt.ty.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestTypeTag(t *testing.T) {
	i32 := I32
	tests := []struct {
		ty   Type
		want string
	}{
		{I32, "i32"},
		{F64, "f64"},
		{Bool, "bool"},
		{Str, "str"},
		{Any, "any"},
		{HT(F64), "ht"},
		{Array(Str), "array"},
		{Fn([]Type{I32}, &i32), "fn"},
	}
	for _, tt := range tests {
		if got := tt.ty.Tag(); got != tt.want {
			t.Errorf("%s.Tag() = %q, want %q", tt.ty, got, tt.want)
		}
	}
}

func TestTypeEqual(t *testing.T) {
	i32 := I32
	f64 := F64
	tests := []struct {
		name string
		a, b Type
		want bool
	}{
		{"same scalar", I32, I32, true},
		{"different scalars", I32, F64, false},
		{"any is not i32", Any, I32, false},
		{"same ht", HT(F64), HT(F64), true},
		{"ht element differs", HT(F64), HT(I32), false},
		{"ht is not array", HT(I32), Array(I32), false},
		{"nested elements", Array(HT(Str)), Array(HT(Str)), true},
		{"same fn", Fn([]Type{I32, F64}, &i32), Fn([]Type{I32, F64}, &i32), true},
		{"fn arity differs", Fn([]Type{I32}, &i32), Fn([]Type{I32, I32}, &i32), false},
		{"fn param differs", Fn([]Type{I32}, &i32), Fn([]Type{F64}, &i32), false},
		{"fn result differs", Fn([]Type{I32}, &i32), Fn([]Type{I32}, &f64), false},
		{"fn result vs void", Fn([]Type{I32}, &i32), Fn([]Type{I32}, nil), false},
		{"both void", Fn([]Type{I32}, nil), Fn([]Type{I32}, nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("%s.Equal(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Equal(tt.a); got != tt.want {
				t.Errorf("%s.Equal(%s) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}
