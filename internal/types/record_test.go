package types

import "testing"

func TestShardQualifier(t *testing.T) {
	cases := []struct {
		index, count int
		want         string
	}{
		{0, 1, ""},
		{0, 0, ""},
		{0, 2, ".shard0-2"},
		{3, 5, ".shard3-5"},
	}
	for _, tc := range cases {
		got := ShardAssignment{Index: tc.index, Count: tc.count}.Qualifier()
		if got != tc.want {
			t.Errorf("Qualifier(%d,%d) = %q, want %q", tc.index, tc.count, got, tc.want)
		}
	}
}
