package evidence

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte(n), 0o644))
	}
}

func TestLocate_PrefixAndSeparator(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "12_a.jpg", "123_b.jpg", "12_c.png", "x12_d.jpg", "12.jpg")

	arts, err := Locate(context.Background(), NewLocalStore(dir), "12")
	require.NoError(t, err)

	var names []string
	for _, a := range arts {
		names = append(names, a.Name)
		assert.Equal(t, filepath.Join(dir, a.Name), a.Path)
	}
	assert.Equal(t, []string{"12_a.jpg", "12_c.png"}, names)
}

func TestLocate_SortedByName(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "7_z.jpg", "7_b.jpg", "7_m.jpg", "7_a.jpg")

	arts, err := Locate(context.Background(), NewLocalStore(dir), "7")
	require.NoError(t, err)
	require.Len(t, arts, 4)
	assert.Equal(t, "7_a.jpg", arts[0].Name)
	assert.Equal(t, "7_b.jpg", arts[1].Name)
	assert.Equal(t, "7_m.jpg", arts[2].Name)
	assert.Equal(t, "7_z.jpg", arts[3].Name)
}

func TestLocate_NoMatchIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "1_a.jpg")

	arts, err := Locate(context.Background(), NewLocalStore(dir), "2")
	require.NoError(t, err)
	assert.Empty(t, arts)
}

func TestLocate_EmptySiteID(t *testing.T) {
	_, err := Locate(context.Background(), NewLocalStore(t.TempDir()), "")
	require.Error(t, err)
}

func TestLocate_MissingRoot(t *testing.T) {
	_, err := Locate(context.Background(), NewLocalStore(filepath.Join(t.TempDir(), "nope")), "1")
	require.Error(t, err)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Contains(t, nf.Error(), "nope")
}

func TestLocalStore_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "1_a.jpg")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "1_sub"), 0o755))

	names, err := NewLocalStore(dir).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1_a.jpg"}, names)
}

func TestLocalStore_OpenRejectsTraversal(t *testing.T) {
	_, err := NewLocalStore(t.TempDir()).Open(context.Background(), "../secret")
	require.Error(t, err)
}

func TestSiteIDs(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "30_a.jpg", "4_a.jpg", "30_b.jpg", "readme.txt", "_orphan.jpg")

	ids, err := SiteIDs(context.Background(), NewLocalStore(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{"30", "4"}, ids)
}

func TestWorkItem(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "8_b.jpg", "8_a.jpg", "80_a.jpg")

	item, err := WorkItem(context.Background(), NewLocalStore(dir), "8")
	require.NoError(t, err)
	assert.Equal(t, "8", item.SiteID)
	require.Len(t, item.Artifacts, 2)
	assert.Equal(t, "8_a.jpg", item.Artifacts[0].Name)
	assert.Equal(t, "8_b.jpg", item.Artifacts[1].Name)

	item, err = WorkItem(context.Background(), NewLocalStore(dir), "9")
	require.NoError(t, err)
	assert.Empty(t, item.Artifacts)
}

func TestReadArtifact(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "5_front.jpg")
	store := NewLocalStore(dir)

	arts, err := Locate(context.Background(), store, "5")
	require.NoError(t, err)
	require.Len(t, arts, 1)

	data, err := ReadArtifact(context.Background(), store, arts[0])
	require.NoError(t, err)
	assert.Equal(t, "5_front.jpg", string(data))
}

func TestRelativeName(t *testing.T) {
	name, ok := relativeName("photos/", "photos/9_a.jpg")
	assert.True(t, ok)
	assert.Equal(t, "9_a.jpg", name)

	_, ok = relativeName("photos/", "photos/")
	assert.False(t, ok)

	_, ok = relativeName("photos/", "photos/old/9_a.jpg")
	assert.False(t, ok)
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "", normalizePrefix(""))
	assert.Equal(t, "photos/", normalizePrefix("photos"))
	assert.Equal(t, "photos/", normalizePrefix("/photos/"))
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func decodeSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestResizeDir(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	writePNG(t, filepath.Join(src, "1_wide.png"), 400, 200)
	writePNG(t, filepath.Join(src, "1_small.png"), 50, 50)
	writeFiles(t, src, "notes.txt", "2_broken.jpg")

	sum, err := ResizeDir(context.Background(), src, dst, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Resized)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 1, sum.Failed)

	w, h := decodeSize(t, filepath.Join(dst, "1_wide.png"))
	assert.Equal(t, 100, w)
	assert.Equal(t, 50, h)

	w, h = decodeSize(t, filepath.Join(dst, "1_small.png"))
	assert.Equal(t, 50, w)
	assert.Equal(t, 50, h)

	_, err = os.Stat(filepath.Join(dst, "notes.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestResizeDir_InPlace(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "3_a.png"), 300, 300)

	sum, err := ResizeDir(context.Background(), dir, dir, 150)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Resized)

	w, _ := decodeSize(t, filepath.Join(dir, "3_a.png"))
	assert.Equal(t, 150, w)
}

func TestResizeDir_BadWidth(t *testing.T) {
	_, err := ResizeDir(context.Background(), t.TempDir(), t.TempDir(), 0)
	require.Error(t, err)
}
