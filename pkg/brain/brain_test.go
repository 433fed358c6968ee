package brain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easyharun/easyharun/pkg/types"
	"github.com/easyharun/easyharun/pkg/world"
)

func TestDecide(t *testing.T) {
	missing := world.Container{Name: "web", Image: "nginx"}
	extra := world.Container{ID: "abc", Name: "old", Image: "nginx:1"}

	tests := []struct {
		name    string
		diff    world.WorldDiff
		want    Action
		wantErr error
	}{
		{
			name: "empty diff",
			diff: world.WorldDiff{},
			want: NoOp{},
		},
		{
			name: "missing starts",
			diff: world.WorldDiff{Missing: []world.Container{missing}},
			want: Start{Container: missing},
		},
		{
			name: "extra stops",
			diff: world.WorldDiff{Extra: []world.Container{extra}},
			want: Stop{Container: extra, ID: "abc"},
		},
		{
			name: "start wins over stop",
			diff: world.WorldDiff{Missing: []world.Container{missing}, Extra: []world.Container{extra}},
			want: Start{Container: missing},
		},
		{
			name:    "extra without id",
			diff:    world.WorldDiff{Extra: []world.Container{{Name: "ghost"}}},
			want:    NoOp{},
			wantErr: ErrStopWithoutID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decide(tt.diff)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecide_OneActionPerTick(t *testing.T) {
	diff := world.WorldDiff{Missing: []world.Container{{Name: "a"}, {Name: "b"}}}

	action, err := Decide(diff)
	require.NoError(t, err)

	start, ok := action.(Start)
	require.True(t, ok)
	assert.Equal(t, "a", start.Container.Name)
}

func TestActionKind(t *testing.T) {
	assert.Equal(t, "start", Start{}.Kind())
	assert.Equal(t, "stop", Stop{ID: types.ContainerID("x")}.Kind())
	assert.Equal(t, "noop", NoOp{}.Kind())
}
