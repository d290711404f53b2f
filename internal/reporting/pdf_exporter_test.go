package reporting

import (
	"testing"
	"time"

	"github.com/corvidlabs/corvid/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCaptureReport_ProducesPDFBytes(t *testing.T) {
	exporter := NewPDFExporter()

	req := &domain.CaptureReportRequest{
		GeneratedAt: time.Now(),
		Fhs:         3,
		Phs:         7,
		Pwds:        1,
		Tcaps:       12,
		Crackable: []domain.CrackableNetwork{
			{BSSID: domain.MAC{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, SSID: "HomeNet"},
		},
	}

	out, err := exporter.ExportCaptureReport(req)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestExportCaptureReport_NoCrackableNetworks(t *testing.T) {
	exporter := NewPDFExporter()
	req := &domain.CaptureReportRequest{GeneratedAt: time.Now()}

	out, err := exporter.ExportCaptureReport(req)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
