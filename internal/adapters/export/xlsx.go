package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"lotting_ledger/internal/models"
	"lotting_ledger/internal/services/ledger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timeLayout      = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
	phaseMark       = "o"
)

var depositHeader = []any{
	"거래 id", "거래일시", "적요", "기재내용", "계약자",
	"찾으신금액", "맡기신금액", "거래후 잔액", "취급점", "계좌",
	"1차", "2차", "3차", "4차", "5차", "6차", "7차", "8차", "9차", "10차",
	"자납", "대출",
}

var lateFeeHeader = []any{
	"관리번호", "상태", "성명", "가입일자", "미납차수", "연체기준일", "최근납부일",
	"연체일수", "연체율", "연체금액", "납부금액", "연체료", "총액",
}

// WriteDeposits renders stored deposit histories in the deposit sheet layout,
// one record per row under a header row.
func WriteDeposits(w io.Writer, recs []models.TransactionRecord) error {
	return writeSheet(w, "Deposits", depositHeader, len(recs), func(i int) []any {
		return depositRow(&recs[i])
	})
}

func depositRow(r *models.TransactionRecord) []any {
	row := make([]any, 0, len(depositHeader))
	row = append(row,
		r.ID, formatTime(r.TransactionTime, timeLayout), r.Description, r.Details, r.Contractor,
		r.WithdrawnAmount, r.DepositAmount, r.BalanceAfter, r.Branch, r.Account,
	)
	for _, set := range r.PhaseFlags {
		if set {
			row = append(row, phaseMark)
		} else {
			row = append(row, "")
		}
	}
	return append(row, r.SelfRecord, r.LoanRecord)
}

// WriteLateFees renders one row per arrears report.
func WriteLateFees(w io.Writer, reports []ledger.ArrearsReport) error {
	return writeSheet(w, "LateFees", lateFeeHeader, len(reports), func(i int) []any {
		r := reports[i]
		phase := ""
		if r.LastOverduePhase != nil {
			phase = fmt.Sprintf("%d", *r.LastOverduePhase)
		}
		return []any{
			r.BuyerID, string(r.Status), r.Name, formatTime(r.RegisterDate, dateLayout), phase,
			formatTime(r.BaseDate, dateLayout), formatTime(r.RecentPaymentDate, dateLayout),
			r.DaysOverdue, r.Rate, r.OverdueAmount, r.PaidAmount, r.LateFee, r.TotalOwed,
		}
	})
}

func writeSheet(w io.Writer, name string, header []any, n int, row func(int) []any) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		return err
	}
	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row(i)); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

func formatTime(t *time.Time, layout string) string {
	if t == nil {
		return ""
	}
	return t.Format(layout)
}

type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Upload stores a rendered workbook under prefix with a fresh uuid name and
// returns the object key.
func Upload(ctx context.Context, client ObjectPutter, bucket, prefix string, data []byte) (string, error) {
	key := fmt.Sprintf("%s/%s.xlsx", prefix, uuid.NewString())
	_, err := client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: ContentTypeXLSX})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}
