// Command siasn-convert converts an existing bulk store JSON file into the
// monitoring spreadsheet, optionally archiving it to Drive as a native sheet.
// Useful for re-publishing a store left behind by an earlier run without a
// full sync cycle.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/Gobusters/ectologger/zapadapter"
	"go.uber.org/zap"

	"github.com/lukmanhidayah/siasn-sync/pkg/drive"
	"github.com/lukmanhidayah/siasn-sync/pkg/models"
	"github.com/lukmanhidayah/siasn-sync/pkg/selection"
	"github.com/lukmanhidayah/siasn-sync/pkg/spreadsheet"
	"github.com/lukmanhidayah/siasn-sync/pkg/status"
	"github.com/lukmanhidayah/siasn-sync/pkg/store"
)

func main() {
	jsonPath := flag.String("json", "data/downloads/monitoring_usulan.json", "bulk store JSON path")
	xlsxPath := flag.String("xlsx", "data/downloads/monitoring_usulan.xlsx", "output spreadsheet path")
	selectionPath := flag.String("selection", "", "optional selection file; empty converts every record")
	driveCredentials := flag.String("drive-credentials", "", "service-account credentials file; empty skips the Drive upload")
	driveFolderID := flag.String("drive-folder", "", "Drive folder for the converted sheet")
	driveTitle := flag.String("drive-title", "monitoring_usulan", "Drive title for the converted sheet")
	flag.Parse()

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	var sel *selection.Set
	if *selectionPath != "" {
		sel, err = selection.Load(*selectionPath)
		if err != nil {
			logger.WithError(err).Error("failed to load selection file")
			os.Exit(1)
		}
	}

	sheet, err := spreadsheet.NewBuilder()
	if err != nil {
		logger.WithError(err).Error("failed to create spreadsheet")
		os.Exit(1)
	}
	defer sheet.Close()

	rows := 0
	seen := make(map[string]struct{})
	err = store.Stream(*jsonPath, func(raw json.RawMessage) error {
		var record models.UsulanRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			logger.WithError(err).Warn("skipping undecodable record")
			return nil
		}

		noPeserta := record.NoPeserta()
		if sel != nil {
			if noPeserta == "" || !sel.Contains(noPeserta) {
				return nil
			}
			if _, dup := seen[noPeserta]; dup {
				return nil
			}
			seen[noPeserta] = struct{}{}
		}

		if err := sheet.AppendRow(spreadsheet.Row{
			NoPeserta:   noPeserta,
			NIP:         record.NIP,
			Nama:        record.DisplayName(),
			StatusLabel: status.Label(record.StatusUsulan.String()),
		}); err != nil {
			return err
		}
		rows++
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("failed to stream bulk store")
		os.Exit(1)
	}

	if err := sheet.Save(*xlsxPath); err != nil {
		logger.WithError(err).Error("failed to save spreadsheet")
		os.Exit(1)
	}
	logger.Infof("wrote %d rows to %s", rows, *xlsxPath)

	if *driveCredentials == "" || *driveFolderID == "" {
		return
	}

	ctx := context.Background()
	archive, err := drive.NewService(ctx, *driveCredentials, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize drive archive")
		os.Exit(1)
	}

	link, err := archive.Upload(ctx, *xlsxPath, *driveFolderID, drive.UploadOptions{
		ConvertSpreadsheet: true,
		ReplaceByTitle:     true,
		Title:              *driveTitle,
	})
	if err != nil {
		logger.WithError(err).Error("failed to upload spreadsheet to drive")
		os.Exit(1)
	}
	logger.Infof("uploaded spreadsheet to drive: %s", link)
}
