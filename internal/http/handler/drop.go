package handler

import (
	"bytes"
	"errors"
	"mime"
	"mime/multipart"
	"sort"

	"github.com/gofiber/fiber/v2"

	"filedrop/internal/service"
	"filedrop/internal/storage"
)

const (
	msgNoFile         = "Please upload at least 1 file."
	msgInvalidName    = "invalid file name"
	msgTooLarge       = "file too large"
	msgUploadFailed   = "upload failed"
	msgNothingToFetch = "No file to download. Upload a file first."
	msgDownloadFailed = "download failed"

	// fileIDField carries the browser-generated correlation token.
	fileIDField = "FileID"
	fileField   = "file"
)

// UploadFile stores the uploaded file in the drop.
//
// @Summary  Upload a file to the drop
// @Tags     drop
// @Accept   multipart/form-data
// @Produce  plain
// @Param    file    formData  file    true   "File to store"
// @Param    FileID  formData  string  false  "Correlation token echoed back"
// @Success  200  {string}  string  "FileID (from browser): <token>"
// @Failure  400  {string}  string  "Please upload at least 1 file."
// @Failure  413  {string}  string  "file too large"
// @Failure  500  {string}  string  "upload failed"
// @Router   /api/upload/uploadfile [post]
func UploadFile(svc service.DropService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeText(c, fiber.StatusBadRequest, msgNoFile)
		}
		var order []string
		if len(form.File[fileField]) == 0 {
			order = fileFieldOrder(c)
		}
		fh := pickFile(form, order)
		if fh == nil {
			return writeText(c, fiber.StatusBadRequest, msgNoFile)
		}

		f, err := fh.Open()
		if err != nil {
			return writeText(c, fiber.StatusInternalServerError, msgUploadFailed)
		}
		defer f.Close()

		fileID := firstValue(form, fileIDField)
		_, err = svc.Upload(c.UserContext(), service.UploadRequest{
			Reader:   f,
			Filename: fh.Filename,
			Size:     fh.Size,
			FileID:   fileID,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrFileRequired):
				return writeText(c, fiber.StatusBadRequest, msgNoFile)
			case errors.Is(err, service.ErrInvalidFilename):
				return writeText(c, fiber.StatusBadRequest, msgInvalidName)
			case errors.Is(err, storage.ErrTooLarge):
				return writeText(c, fiber.StatusRequestEntityTooLarge, msgTooLarge)
			default:
				return writeText(c, fiber.StatusInternalServerError, msgUploadFailed)
			}
		}

		return writeText(c, fiber.StatusOK, "FileID (from browser): "+fileID)
	}
}

// DownloadFile streams the most recently stored file as an attachment.
//
// @Summary  Download the newest file
// @Tags     drop
// @Produce  octet-stream
// @Success  200  {file}    file
// @Failure  400  {string}  string  "No file to download. Upload a file first."
// @Failure  500  {string}  string  "download failed"
// @Router   /api/download/downloadfile [get]
func DownloadFile(svc service.DropService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rc, f, err := svc.Download(c.UserContext())
		if err != nil {
			if errors.Is(err, service.ErrNothingToDownload) {
				return writeText(c, fiber.StatusBadRequest, msgNothingToFetch)
			}
			return writeText(c, fiber.StatusInternalServerError, msgDownloadFailed)
		}

		c.Set(fiber.HeaderContentDisposition, contentDisposition(f.Name))
		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
		// fasthttp closes rc once the body has been written.
		return c.Status(fiber.StatusOK).SendStream(rc, int(f.Size))
	}
}

// pickFile returns the "file" part, or else the first file part of the
// request. order lists the file fields in the order they were sent; fields it
// misses are visited in sorted order.
func pickFile(form *multipart.Form, order []string) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	if files := form.File[fileField]; len(files) > 0 {
		return files[0]
	}
	keys := make([]string, 0, len(form.File))
	for k := range form.File {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range append(order, keys...) {
		if files := form.File[k]; len(files) > 0 {
			return files[0]
		}
	}
	return nil
}

// fileFieldOrder lists the field names of the file parts in body order.
// Part contents are skipped.
func fileFieldOrder(c *fiber.Ctx) []string {
	_, params, err := mime.ParseMediaType(c.Get(fiber.HeaderContentType))
	if err != nil || params["boundary"] == "" {
		return nil
	}
	mr := multipart.NewReader(bytes.NewReader(c.Body()), params["boundary"])
	var fields []string
	for {
		p, err := mr.NextPart()
		if err != nil {
			return fields
		}
		if p.FileName() != "" {
			fields = append(fields, p.FormName())
		}
	}
}

// contentDisposition names the attachment exactly as stored. Non-ASCII names
// use the RFC 2231 filename* form.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

func firstValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}
