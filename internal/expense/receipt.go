package expense

import (
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"billing-backend/internal/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const MaxReceiptSize = 5 << 20

var receiptExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true, ".pdf": true,
}

// ReceiptStore keeps uploaded receipts under dir/expenses and maps them to
// public URLs below urlPrefix.
type ReceiptStore struct {
	dir       string
	urlPrefix string
}

func NewReceiptStore(uploadDir, urlPrefix string) *ReceiptStore {
	return &ReceiptStore{dir: filepath.Join(uploadDir, "expenses"), urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

// Save stores the upload under a random name and returns its URL.
func (s *ReceiptStore) Save(c *fiber.Ctx, fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !receiptExts[ext] {
		return "", apperror.ValidationFields("Validation failed", map[string]string{"receipt": "unsupported_file_type"})
	}
	if fh.Size > MaxReceiptSize {
		return "", apperror.ValidationFields("Validation failed", map[string]string{"receipt": "file_too_large"})
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", apperror.Internal("create upload dir failed", err)
	}

	name := uuid.NewString() + ext
	if err := c.SaveFile(fh, filepath.Join(s.dir, name)); err != nil {
		return "", apperror.Internal("save receipt failed", err)
	}
	return path.Join(s.urlPrefix, "expenses", name), nil
}

// receiptFile returns the optional multipart "receipt" file. JSON requests
// and forms without the field yield nil.
func receiptFile(c *fiber.Ctx) *multipart.FileHeader {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil
	}
	fh, err := c.FormFile("receipt")
	if err != nil {
		return nil
	}
	return fh
}
