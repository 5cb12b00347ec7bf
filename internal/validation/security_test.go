package validation

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateArgument(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		wantErr bool
	}{
		{name: "flag", arg: "--style=compressed", wantErr: false},
		{name: "relative path", arg: "src/site.scss", wantErr: false},
		{name: "command injection semicolon", arg: "site.scss; rm -rf /", wantErr: true},
		{name: "command injection pipe", arg: "site.scss | cat /etc/passwd", wantErr: true},
		{name: "command injection backtick", arg: "site`whoami`.scss", wantErr: true},
		{name: "path traversal", arg: "../../../etc/passwd", wantErr: true},
		{name: "absolute path not allowed", arg: "/home/user/site.scss", wantErr: true},
		{name: "allowed system binary path", arg: "/usr/local/bin/sass", wantErr: false},
		{name: "subshell", arg: "file$(whoami).scss", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateArgument(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateArgument() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	allowed := map[string]bool{"sass": true}

	assert.NoError(t, ValidateCommand("sass", allowed))
	assert.NoError(t, ValidateCommand("/usr/bin/sass", allowed))
	assert.Error(t, ValidateCommand("", allowed))
	assert.Error(t, ValidateCommand("node", allowed))
	assert.Error(t, ValidateCommand("sass;ls", allowed))
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "simple", path: "src", wantErr: false},
		{name: "nested", path: "build/site", wantErr: false},
		{name: "dot segments inside", path: "src/./pages", wantErr: false},
		{name: "dots in name", path: "site..v2", wantErr: false},
		{name: "empty", path: "", wantErr: true},
		{name: "traversal", path: "../outside", wantErr: true},
		{name: "absolute", path: "/var/www", wantErr: true},
		{name: "metacharacter", path: "build;rm", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolveWithin(t *testing.T) {
	root := filepath.Join("project", "src")

	got, err := ResolveWithin(root, "/partials/nav.html")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "partials", "nav.html"), got)

	got, err = ResolveWithin(root, "partials/../footer.html")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "footer.html"), got)

	_, err = ResolveWithin(root, "../../etc/passwd")
	assert.Error(t, err)

	_, err = ResolveWithin(root, "  ")
	assert.Error(t, err)
}

func TestValidateFileExtension(t *testing.T) {
	exts := []string{".scss", ".sass"}

	assert.NoError(t, ValidateFileExtension("site.SCSS", exts))
	assert.Error(t, ValidateFileExtension("site.css", exts))
	assert.Error(t, ValidateFileExtension("Makefile", exts))
	assert.Error(t, ValidateFileExtension("", exts))
}

func TestErrorKinds(t *testing.T) {
	assert.ErrorIs(t, ValidateArgument("a;b"), ErrUnsafe)
	assert.ErrorIs(t, ValidatePath("../outside"), ErrUnsafe)
	assert.ErrorIs(t, ValidateCommand("node", map[string]bool{"sass": true}), ErrNotAllowed)
	assert.ErrorIs(t, ValidateCommand("sass;ls", map[string]bool{"sass;ls": true}), ErrUnsafe)
	assert.ErrorIs(t, ValidateFileExtension("site.css", []string{".scss"}), ErrNotAllowed)

	_, err := ResolveWithin(t.TempDir(), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrUnsafe)
}
