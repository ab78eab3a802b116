package tui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToast_ExpiresOnOwnTimer(t *testing.T) {
	m := NewToastModel(time.Millisecond)

	first := run(m.Show("Saved options.json", ToastSuccess))
	require.Len(t, first, 1)
	assert.True(t, m.Visible())

	second := run(m.Show("Webserver not responding (timeout)", ToastError))
	require.Len(t, second, 1)

	// The first timer must not cut the second toast short.
	m, _ = m.Update(first[0])
	assert.Equal(t, "Webserver not responding (timeout)", m.Text())

	m, _ = m.Update(second[0])
	assert.False(t, m.Visible())
	assert.Empty(t, m.View())
}

func TestToast_DefaultDuration(t *testing.T) {
	assert.Equal(t, DefaultToastDuration, NewToastModel(0).Duration)
}
