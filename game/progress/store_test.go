package progress

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dsdungeon/apiclient"
	"dsdungeon/game/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRemote struct {
	progress *apiclient.Progress
	err      error
	updates  []apiclient.ProgressUpdate
	deleted  bool
}

func (f *fakeRemote) GetProgress(ctx context.Context) (*apiclient.Progress, error) {
	return f.progress, f.err
}

func (f *fakeRemote) UpdateProgress(ctx context.Context, upd apiclient.ProgressUpdate) (*apiclient.Progress, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updates = append(f.updates, upd)
	return &apiclient.Progress{}, nil
}

func (f *fakeRemote) DeleteProgress(ctx context.Context) error {
	f.deleted = true
	return f.err
}

func savePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "save.json")
}

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		CurrentRoom:  4,
		Health:       60,
		Score:        1850,
		TotalCorrect: 9,
		OpenedChests: []run.ChestRef{{Room: 4, Chest: 1}},
		AnsweredIDs:  []int{1, 8, 15},
	}
}

func TestSaveLoad_LocalRoundTrip(t *testing.T) {
	st := NewStore(nil, savePath(t), zap.NewNop())

	want := sampleSnapshot()
	assert.True(t, st.Save(context.Background(), want))

	got, ok := st.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.True(t, st.HasSave(context.Background()))
}

func TestLoad_NoFile(t *testing.T) {
	st := NewStore(nil, savePath(t), zap.NewNop())
	_, ok := st.Load(context.Background())
	assert.False(t, ok)
	assert.False(t, st.HasSave(context.Background()))
}

func TestLoad_MalformedFileTreatedAsAbsent(t *testing.T) {
	path := savePath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	st := NewStore(nil, path, zap.NewNop())
	_, ok := st.Load(context.Background())
	assert.False(t, ok)
}

func TestLoad_RoomOneIsNoSave(t *testing.T) {
	st := NewStore(nil, savePath(t), zap.NewNop())
	st.Save(context.Background(), &Snapshot{CurrentRoom: 1, Health: 100})

	_, ok := st.Load(context.Background())
	assert.False(t, ok, "a fresh-at-room-1 save is not resumable")
}

func TestSave_RemotePreferred(t *testing.T) {
	remote := &fakeRemote{}
	st := NewStore(remote, savePath(t), zap.NewNop())

	assert.True(t, st.Save(context.Background(), sampleSnapshot()))
	require.Len(t, remote.updates, 1)
	assert.Equal(t, 4, remote.updates[0].CurrentRoom)
	assert.Equal(t, 60, remote.updates[0].BrightnessLevel)
}

func TestSave_RemoteFailureStillSavesLocal(t *testing.T) {
	remote := &fakeRemote{err: errors.New("backend down")}
	path := savePath(t)
	st := NewStore(remote, path, zap.NewNop())

	assert.True(t, st.Save(context.Background(), sampleSnapshot()))
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestLoad_RemoteWinsOverLocal(t *testing.T) {
	chestJSON, _ := json.Marshal([]run.ChestRef{{Room: 7, Chest: 2}})
	remote := &fakeRemote{progress: &apiclient.Progress{
		CurrentRoom:     7,
		BrightnessLevel: 40,
		Score:           5000,
		ChestStates:     string(chestJSON),
	}}
	st := NewStore(remote, savePath(t), zap.NewNop())
	st.saveLocal(&Snapshot{CurrentRoom: 2, Health: 100})

	got, ok := st.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, 7, got.CurrentRoom)
	assert.Equal(t, []run.ChestRef{{Room: 7, Chest: 2}}, got.OpenedChests)
}

func TestLoad_RemoteFreshRowFallsBackToLocal(t *testing.T) {
	// The server creates a room-1 row on first GET; that must not mask
	// a real local save.
	remote := &fakeRemote{progress: &apiclient.Progress{CurrentRoom: 1, BrightnessLevel: 100}}
	st := NewStore(remote, savePath(t), zap.NewNop())
	st.saveLocal(&Snapshot{CurrentRoom: 3, Health: 80})

	got, ok := st.Load(context.Background())
	require.True(t, ok)
	assert.Equal(t, 3, got.CurrentRoom)
}

func TestClear_AllTiers(t *testing.T) {
	remote := &fakeRemote{}
	path := savePath(t)
	st := NewStore(remote, path, zap.NewNop())
	st.Save(context.Background(), sampleSnapshot())

	st.Clear(context.Background())
	assert.True(t, remote.deleted)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	assert.False(t, st.HasSave(context.Background()))
}

func TestSnapshot_StateRoundTrip(t *testing.T) {
	src := run.NewState(zap.NewNop())
	src.CurrentRoom = 6
	src.Health = 40
	src.Score = 3200
	src.TotalCorrect = 12
	src.TotalIncorrect = 3
	src.OpenChest(6, 2)

	snap := FromState(src, []int{4, 9})
	dst := run.NewState(zap.NewNop())
	snap.Apply(dst)

	assert.Equal(t, src.CurrentRoom, dst.CurrentRoom)
	assert.Equal(t, src.Health, dst.Health)
	assert.Equal(t, src.Score, dst.Score)
	assert.Equal(t, src.TotalCorrect, dst.TotalCorrect)
	assert.Equal(t, src.TotalIncorrect, dst.TotalIncorrect)
	assert.True(t, dst.IsChestOpened(6, 2))
	assert.Equal(t, []int{4, 9}, snap.AnsweredIDs)
}
