package utils

import "testing"

func TestTruncateString(t *testing.T) {
	type args struct {
		s   string
		max int
	}
	tests := []struct {
		name string
		args args
		want string
	}{
		{
			name: "shorter than max",
			args: args{
				s:   "teapot",
				max: 10,
			},
			want: "teapot",
		},
		{
			name: "exactly max",
			args: args{
				s:   "teapot",
				max: 6,
			},
			want: "teapot",
		},
		{
			name: "longer than max",
			args: args{
				s:   "a blue ceramic teapot",
				max: 6,
			},
			want: "a blue...",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.args.s, tt.args.max); got != tt.want {
				t.Errorf("TruncateString() = %v, want %v", got, tt.want)
			}
		})
	}
}
