package prompts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/mediaflow/llm/chat"
	"github.com/BaSui01/mediaflow/testutil"
	"github.com/BaSui01/mediaflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAsker struct {
	reply  string
	err    error
	models []string
	system []string
	parts  [][]chat.Part
}

func (s *scriptedAsker) Ask(_ context.Context, model, system string, parts ...chat.Part) (string, error) {
	s.models = append(s.models, model)
	s.system = append(s.system, system)
	s.parts = append(s.parts, parts)
	return s.reply, s.err
}

func fixedDay() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

func TestCollect_Manual(t *testing.T) {
	c := NewCollector(nil)
	got, err := c.Collect(context.Background(), Spec{Manual: []string{" a cat ", "", "  ", "a dog"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a cat", "a dog"}, got)

	_, err = c.Collect(context.Background(), Spec{Source: SourceManual, Manual: []string{" "}})
	testutil.AssertErrorCode(t, err, types.ErrNoPrompts)
	assert.True(t, types.IsFatal(err))
}

func TestCollect_File(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"prompts.txt": "# header\n\nsunset over the sea\n   # indented comment\n  a red fox in snow  \r\n",
		"empty.txt":   "# nothing\n\n",
	})
	c := NewCollector(nil)

	got, err := c.Collect(context.Background(), Spec{Source: SourceFile, File: filepath.Join(dir, "prompts.txt")})
	require.NoError(t, err)
	assert.Equal(t, []string{"sunset over the sea", "a red fox in snow"}, got)

	_, err = c.Collect(context.Background(), Spec{Source: SourceFile, File: filepath.Join(dir, "empty.txt")})
	testutil.AssertErrorCode(t, err, types.ErrNoPrompts)

	_, err = c.Collect(context.Background(), Spec{Source: SourceFile, File: filepath.Join(dir, "missing.txt")})
	testutil.AssertErrorCode(t, err, types.ErrInvalidInput)
}

func TestCollect_Generated(t *testing.T) {
	dir := t.TempDir()
	asker := &scriptedAsker{reply: "1. A misty mountain lake at dawn\n2) \"Snowy peaks under aurora\"\n- Alpine meadow, oil painting\n4. extra one"}
	c := NewCollector(nil, WithAsker(asker, "qwen-turbo", "qwen-vl-plus"), WithLogDir(dir), WithClock(fixedDay))

	got, err := c.Collect(context.Background(), Spec{Source: SourceGenerated, Keyword: "Mountain Lakes", Count: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"A misty mountain lake at dawn",
		"Snowy peaks under aurora",
		"Alpine meadow, oil painting",
	}, got)

	require.Len(t, asker.parts, 1)
	assert.Equal(t, "qwen-turbo", asker.models[0])
	assert.Contains(t, asker.parts[0][0].Text, `3 distinct image generation prompts about "Mountain Lakes"`)

	logPath := filepath.Join(dir, "2026-03-14-mountain_lakes.txt")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(got, "\n")+"\n", string(data))

	// 同一天同一关键词追加写入
	_, err = c.Collect(context.Background(), Spec{Source: SourceGenerated, Keyword: "Mountain Lakes", Count: 1})
	require.NoError(t, err)
	data, err = os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(data), "\n"))
}

func TestCollect_GeneratedErrors(t *testing.T) {
	c := NewCollector(nil)
	_, err := c.Collect(context.Background(), Spec{Source: SourceGenerated, Keyword: "cats"})
	testutil.AssertErrorCode(t, err, types.ErrConfiguration)

	_, err = c.Collect(context.Background(), Spec{Source: SourceGenerated})
	testutil.AssertErrorCode(t, err, types.ErrInvalidInput)

	failing := &scriptedAsker{err: types.NewError(types.ErrTransport, "offline")}
	c = NewCollector(nil, WithAsker(failing, "t", "v"))
	_, err = c.Collect(context.Background(), Spec{Source: SourceGenerated, Keyword: "cats"})
	testutil.AssertErrorCode(t, err, types.ErrTransport)

	blank := &scriptedAsker{reply: "\n  \n"}
	c = NewCollector(nil, WithAsker(blank, "t", "v"), WithLogDir(t.TempDir()))
	_, err = c.Collect(context.Background(), Spec{Source: SourceGenerated, Keyword: "cats"})
	testutil.AssertErrorCode(t, err, types.ErrNoPrompts)
}

func TestCollect_Image(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"ref.jpg": "jpeg-bytes"})
	asker := &scriptedAsker{reply: "  A tabby cat\n sleeping on a windowsill,  soft light  "}
	c := NewCollector(nil, WithAsker(asker, "qwen-turbo", "qwen-vl-plus"))

	got, err := c.Collect(context.Background(), Spec{Source: SourceImage, Image: filepath.Join(dir, "ref.jpg")})
	require.NoError(t, err)
	assert.Equal(t, []string{"A tabby cat sleeping on a windowsill, soft light"}, got)
	assert.Equal(t, "qwen-vl-plus", asker.models[0])
	assert.True(t, strings.HasPrefix(asker.parts[0][0].ImageURL.URL, "data:image/jpeg;base64,"))

	_, err = c.Collect(context.Background(), Spec{Source: SourceImage, Image: "https://cdn.example.com/ref.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/ref.png", asker.parts[1][0].ImageURL.URL)

	_, err = c.Collect(context.Background(), Spec{Source: SourceImage, Image: filepath.Join(dir, "nope.png")})
	testutil.AssertErrorCode(t, err, types.ErrInvalidInput)
}

func TestCollect_UnknownSource(t *testing.T) {
	_, err := NewCollector(nil).Collect(context.Background(), Spec{Source: "radio"})
	testutil.AssertErrorCode(t, err, types.ErrInvalidInput)
}

func TestParseSource(t *testing.T) {
	for in, want := range map[string]Source{"": SourceManual, "FILE": SourceFile, " generated ": SourceGenerated, "image": SourceImage} {
		got, err := ParseSource(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseSource("tv")
	testutil.AssertErrorCode(t, err, types.ErrInvalidInput)
}

func TestLogPath(t *testing.T) {
	assert.Equal(t, filepath.Join("logs", "2026-03-14-city_night.txt"), LogPath("logs", fixedDay(), "City Night!"))
	assert.Equal(t, filepath.Join("logs", "2026-03-14-prompts.txt"), LogPath("logs", fixedDay(), "???"))
}

func TestParseList(t *testing.T) {
	got := ParseList("1、第一条\n• second\n* third\n\n10: tenth\n“quoted”")
	assert.Equal(t, []string{"第一条", "second", "third", "tenth", "quoted"}, got)
}
