package buildctx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextPaths(t *testing.T) {
	ws := Workspace{
		OutputRoot: filepath.Join("out", "build_stage"),
		FinalRoot:  filepath.Join("out", "build"),
		AssetsDir:  "assets",
	}

	assert.True(t, ws.Staged())
	assert.Equal(t, filepath.Join("out", "build_stage", "assets"), ws.AssetsRoot())

	bc := ws.WithToken(1700000000000)
	assert.Equal(t, filepath.Join("out", "build_stage", "assets", "1700000000000"), bc.VersionedDir())
	assert.Equal(t, "/assets/1700000000000/site.css", bc.AssetURL("site.css"))
}

func TestUnstagedWorkspace(t *testing.T) {
	ws := Workspace{OutputRoot: "build/", FinalRoot: "build"}
	assert.False(t, ws.Staged())
}
