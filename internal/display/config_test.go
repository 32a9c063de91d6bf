package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDisplayConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultDisplayConfig().Validate())
}

func TestDisplayConfig_SetDefaults(t *testing.T) {
	config := &DisplayConfig{}
	config.SetDefaults()

	assert.Equal(t, "dark", config.Theme)
	assert.Equal(t, "table", config.OutputFormat)
	assert.Equal(t, "default", config.TableStyle)
	assert.Equal(t, 120, config.MaxTableWidth)
	assert.NotNil(t, config.Writer)
	assert.NotNil(t, config.ErrWriter)
	assert.NotNil(t, config.Reader)
	assert.NoError(t, config.Validate())
}

func TestDisplayConfig_Validate(t *testing.T) {
	config := DefaultDisplayConfig()
	config.Theme = "neon"
	config.OutputFormat = "xml"
	config.TableStyle = "fancy"
	config.MaxTableWidth = 10

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid theme 'neon'")
	assert.Contains(t, err.Error(), "invalid output format 'xml'")
	assert.Contains(t, err.Error(), "invalid table style 'fancy'")
	assert.Contains(t, err.Error(), "max table width must be between 40 and 300")
}

func TestDisplayConfig_QuietDisablesDecoration(t *testing.T) {
	config := DefaultDisplayConfig()
	config.QuietMode = true

	assert.False(t, config.IsColorEnabled())
	assert.False(t, config.IsIconsEnabled())
	assert.False(t, config.IsProgressEnabled())
}

func TestDisplayConfig_ProgressOnlyForTables(t *testing.T) {
	config := DefaultDisplayConfig()
	assert.True(t, config.IsProgressEnabled())

	config.OutputFormat = "json"
	assert.False(t, config.IsProgressEnabled())
}
