package jobs

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/siamfx/backoffice/internal/models"
	"github.com/siamfx/backoffice/internal/services/report"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BOTExportJob rebuilds every branch's previous-month workbook on a daily
// schedule so the regulator copy never lags manual exports.
type BOTExportJob struct {
	db    *gorm.DB
	excel *report.ExcelBuilder
	log   *logrus.Entry
}

// NewBOTExportJob creates the scheduled export job.
func NewBOTExportJob(db *gorm.DB, excel *report.ExcelBuilder) *BOTExportJob {
	return &BOTExportJob{
		db:    db,
		excel: excel,
		log:   logrus.WithField("job", "bot_export"),
	}
}

// Schedule registers the job on the scheduler at the configured local time
// (HH:MM).
func (j *BOTExportJob) Schedule(scheduler *gocron.Scheduler, at string) error {
	_, err := scheduler.Every(1).Day().At(at).Do(j.Run)
	return err
}

// Run exports the previous month's workbook for every branch.
func (j *BOTExportJob) Run() {
	prev := time.Now().AddDate(0, -1, 0)

	var branches []models.Branch
	if err := j.db.Find(&branches).Error; err != nil {
		j.log.WithError(err).Error("failed to load branches")
		return
	}

	for _, branch := range branches {
		path, err := j.excel.Build(branch.ID, prev.Year(), prev.Month())
		if err != nil {
			j.log.WithError(err).WithField("branch_id", branch.ID).
				Error("monthly workbook export failed")
			continue
		}
		j.log.WithFields(logrus.Fields{"branch_id": branch.ID, "path": path}).
			Info("monthly workbook exported")
	}
}
