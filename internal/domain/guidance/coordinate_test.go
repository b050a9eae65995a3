package guidance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCoordinate_Text verifies rendering of known and unknown coordinates.
func TestCoordinate_Text(t *testing.T) {
	t.Parallel()

	known := NewCoordinate(48.1173, 11.516667)
	require.True(t, known.Known)
	require.Equal(t, "48.117300, 11.516667", known.String())
	require.Equal(t, "https://www.google.com/maps?q=48.117300,11.516667", known.MapsURL())

	unknown := Unknown()
	require.False(t, unknown.Known)
	require.Equal(t, "Unknown", unknown.String())
	require.Equal(t, "https://www.google.com/maps?q=Unknown,Unknown", unknown.MapsURL())
}

// TestPriorityAndOutcomeNames verifies log names of enums.
func TestPriorityAndOutcomeNames(t *testing.T) {
	t.Parallel()

	require.Equal(t, "routine", PriorityRoutine.String())
	require.Equal(t, "alert", PriorityAlert.String())
	require.Equal(t, "dropped", Dropped.String())
	require.Equal(t, "canceled", Canceled.String())
	require.Equal(t, "high", High.String())
	require.Equal(t, "low", Low.String())
}
