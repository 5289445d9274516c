package arrowodbc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiagnostics(t *testing.T) {
	root := errors.New("connection reset")
	mid := fmt.Errorf("fetch row: %w", root)
	top := fmt.Errorf("read batch: %w", mid)

	require.Equal(t, []string{
		"read batch",
		"fetch row",
		"connection reset",
	}, Diagnostics(top, 0))
}

func TestDiagnosticsBounded(t *testing.T) {
	err := errors.New("layer 0")
	for i := 1; i < 10; i++ {
		err = fmt.Errorf("layer %d: %w", i, err)
	}

	got := Diagnostics(err, 3)
	require.Equal(t, []string{"layer 9", "layer 8", "layer 7", "further diagnostics omitted"}, got)
}

func TestDiagnosticsNil(t *testing.T) {
	require.Empty(t, Diagnostics(nil, 5))
}

func TestBoundDiagnosticsKeepsShortChains(t *testing.T) {
	err := fmt.Errorf("fetch row: %w", errors.New("connection reset"))

	require.Equal(t, err, boundDiagnostics(err, 4))
	require.Equal(t, err, boundDiagnostics(err, 0))
}

func TestBoundDiagnosticsCutsLongChains(t *testing.T) {
	root := errors.New("layer 0")

	err := error(root)
	for i := 1; i < 8; i++ {
		err = fmt.Errorf("layer %d: %w", i, err)
	}

	bounded := boundDiagnostics(err, 3)
	require.Equal(t, "layer 7: layer 6: layer 5: further diagnostics omitted", bounded.Error())

	// Bounding the rendering must not hide the chain from errors.Is.
	require.ErrorIs(t, bounded, root)
}
