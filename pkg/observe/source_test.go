package observe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-inspect/pkg/automation"
	"github.com/mattsolo1/grove-inspect/pkg/automation/simulated"
)

const interval = 5 * time.Millisecond

func receive(t *testing.T, ch <-chan automation.Element) automation.Element {
	t.Helper()
	select {
	case el := <-ch:
		return el
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return nil
	}
}

func TestLatestKeepsOnlyNewestValue(t *testing.T) {
	l := NewLatest[int]()
	l.Put(1)
	l.Put(2)
	l.Put(3)

	assert.Equal(t, 3, <-l.C())
	select {
	case v := <-l.C():
		t.Fatalf("unexpected extra value %d", v)
	default:
	}

	l.Put(4)
	l.Drain()
	select {
	case v := <-l.C():
		t.Fatalf("value %d survived Drain", v)
	default:
	}
}

func TestFocusObserverReportsChanges(t *testing.T) {
	d := simulated.New(simulated.Sample(), nil)
	obs := NewFocusObserver(d, d, interval, nil)
	require.NoError(t, obs.Start(context.Background()))
	defer obs.Stop()

	first := receive(t, obs.Events())
	assert.Equal(t, d.MustFind("Untitled - Notepad/Text Editor").RuntimeID(), first.RuntimeID())

	calc := d.MustFind("Calculator/Number pad/Two")
	d.SetFocus(calc)
	assert.Equal(t, calc.RuntimeID(), receive(t, obs.Events()).RuntimeID())
}

func TestHoverObserverFollowsPointer(t *testing.T) {
	d := simulated.New(simulated.Sample(), nil)
	obs := NewHoverObserver(d, d, interval, nil)
	require.NoError(t, obs.Start(context.Background()))
	defer obs.Stop()

	assert.Equal(t, d.MustFind("Untitled - Notepad/Application/File").RuntimeID(), receive(t, obs.Events()).RuntimeID())

	d.SetPointer(1110, 410)
	assert.Equal(t, d.MustFind("Calculator/Number pad/Two").RuntimeID(), receive(t, obs.Events()).RuntimeID())
}

func TestObserverSkipsUnchangedElement(t *testing.T) {
	d := simulated.New(simulated.Sample(), nil)
	obs := NewFocusObserver(d, d, interval, nil)
	require.NoError(t, obs.Start(context.Background()))
	defer obs.Stop()

	receive(t, obs.Events())
	select {
	case el := <-obs.Events():
		t.Fatalf("unchanged focus delivered again: %s", el.RuntimeID())
	case <-time.After(20 * interval):
	}
}

func TestStopGuaranteesNoFurtherEvents(t *testing.T) {
	d := simulated.New(simulated.Sample(), nil)
	obs := NewFocusObserver(d, d, interval, nil)
	require.NoError(t, obs.Start(context.Background()))
	receive(t, obs.Events())

	d.SetFocus(d.MustFind("Calculator"))
	obs.Stop()
	assert.False(t, obs.Running())

	d.SetFocus(d.MustFind("Taskbar"))
	select {
	case el := <-obs.Events():
		t.Fatalf("event delivered after Stop: %s", el.RuntimeID())
	case <-time.After(20 * interval):
	}

	// Stop is idempotent.
	obs.Stop()
}

func TestStartTwiceFails(t *testing.T) {
	d := simulated.New(simulated.Sample(), nil)
	obs := NewHoverObserver(d, d, interval, nil)
	require.NoError(t, obs.Start(context.Background()))
	defer obs.Stop()

	assert.ErrorIs(t, obs.Start(context.Background()), ErrAlreadyStarted)
	assert.True(t, obs.Running())
	assert.Equal(t, "hover", obs.Name())
}

func TestObserverRestartsAfterStop(t *testing.T) {
	d := simulated.New(simulated.Sample(), nil)
	obs := NewFocusObserver(d, d, interval, nil)
	require.NoError(t, obs.Start(context.Background()))
	receive(t, obs.Events())
	obs.Stop()

	require.NoError(t, obs.Start(context.Background()))
	defer obs.Stop()
	// A restarted observer reports the current element again.
	assert.Equal(t, d.MustFind("Untitled - Notepad/Text Editor").RuntimeID(), receive(t, obs.Events()).RuntimeID())
}
