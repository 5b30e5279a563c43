package handlers

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

func TestWriteEventFraming(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	ev := events.NewEvent(events.EventTicketCreated, "t-1", "user@example.com", nil, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	require.NoError(t, writeEvent(w, ev))

	lines := strings.Split(buf.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.Equal(t, "id: "+ev.ID, lines[0])
	assert.Equal(t, "event: "+string(events.EventTicketCreated), lines[1])
	require.True(t, strings.HasPrefix(lines[2], "data: "))
	assert.True(t, strings.HasSuffix(buf.String(), "\n\n"))

	var decoded events.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[2], "data: ")), &decoded))
	assert.Equal(t, "t-1", decoded.TicketID)
}

func TestWriteComment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeComment(bufio.NewWriter(&buf), "ping"))
	assert.Equal(t, ": ping\n\n", buf.String())
}
