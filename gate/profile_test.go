package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManageSubcommand(t *testing.T) {
	tests := []struct {
		name     string
		argv     []string
		expected string
	}{
		{"bare manage.py", []string{"manage.py", "test"}, "test"},
		{"relative manage.py", []string{"./manage.py", "migrate"}, "migrate"},
		{"python prefix", []string{"python", "manage.py", "shell"}, "shell"},
		{"absolute path", []string{"python", "/app/manage.py", "dbshell"}, "dbshell"},
		{"not manage.py", []string{"gunicorn", "config.wsgi", "--bind", "0.0.0.0:8000"}, ""},
		{"missing subcommand", []string{"manage.py"}, ""},
		{"flag instead of subcommand", []string{"python", "manage.py", "--version"}, ""},
		{"empty argv", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ManageSubcommand(tt.argv))
		})
	}
}

func TestUserProfileSkipList(t *testing.T) {
	tests := []struct {
		sub  string
		skip bool
	}{
		{"shell", true},
		{"dbshell", true},
		{"test", true},
		{"createsuperuser", true},
		{"makemigrations", true},
		{"showmigrations", true},
		{"migrate", false},
		{"collectstatic", false},
		{"runserver", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run("sub="+tt.sub, func(t *testing.T) {
			assert.Equal(t, tt.skip, UserProfile.shouldSkip(tt.sub))
		})
	}
}

// The product variant has no migration step, so its skip list is shorter.
// The asymmetry is intentional and must not be unified away.
func TestProductProfileSkipList(t *testing.T) {
	tests := []struct {
		sub  string
		skip bool
	}{
		{"shell", true},
		{"test", true},
		{"createsuperuser", true},
		{"dbshell", false},
		{"makemigrations", false},
		{"showmigrations", false},
		{"migrate", false},
		{"runserver", false},
	}

	for _, tt := range tests {
		t.Run("sub="+tt.sub, func(t *testing.T) {
			assert.Equal(t, tt.skip, ProductProfile.shouldSkip(tt.sub))
		})
	}
}

func TestProfileDependencyTargets(t *testing.T) {
	assert.Equal(t, "POSTGRES_HOST", UserProfile.HostEnv)
	assert.Equal(t, 5432, UserProfile.DefaultPort)
	assert.Len(t, UserProfile.SetupTasks, 2)
	assert.Equal(t, "collectstatic", UserProfile.SetupTasks[0].Name)
	assert.Equal(t, "migrate", UserProfile.SetupTasks[1].Name)

	assert.Equal(t, "MONGO_HOST", ProductProfile.HostEnv)
	assert.Equal(t, 27017, ProductProfile.DefaultPort)
	assert.Len(t, ProductProfile.SetupTasks, 1)
	assert.Equal(t, "collectstatic", ProductProfile.SetupTasks[0].Name)
}
