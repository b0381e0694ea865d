// internal/app/features/submissions/create.go
package submissions

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	errorsfeature "github.com/dalemusser/compliancehub/internal/app/features/errors"
	"github.com/dalemusser/compliancehub/internal/app/system/attachments"
	"github.com/dalemusser/compliancehub/internal/app/system/authz"
	"github.com/dalemusser/compliancehub/internal/app/system/limits"
	lifecycle "github.com/dalemusser/compliancehub/internal/app/system/submissions"
	"github.com/dalemusser/compliancehub/internal/app/system/timeouts"
	"github.com/dalemusser/compliancehub/internal/domain/errs"
)

type createRequest struct {
	StandardNumber int    `json:"standard_number"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	Notes          string `json:"notes"`
}

// Create handles POST /submissions. Accepts either a JSON body or a
// multipart form whose "files" parts become attachments.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, _ := authz.CallerCtx(r)

	var (
		req   createRequest
		files []attachments.TempFile
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		form, err := parseForm(w, r)
		if err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
		defer func() { _ = form.RemoveAll() }()

		req, files, err = fromForm(form)
		if err != nil {
			h.ErrLog.Write(w, r, err)
			return
		}
	} else if err := errorsfeature.DecodeJSON(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "create submission")
	defer cancel()

	sub, err := h.Submissions.Create(ctx, caller.AgencyID, req.StandardNumber, lifecycle.Content{
		Title:       req.Title,
		Description: req.Description,
		Notes:       req.Notes,
		Files:       files,
	})
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	errorsfeature.JSON(w, http.StatusCreated, sub)
}

func parseForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxUploadSize)
	if err := r.ParseMultipartForm(limits.MaxUploadMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, errs.Invalid("upload exceeds %d bytes", limits.MaxUploadSize)
		}
		return nil, errs.Invalid("malformed multipart form: %v", err)
	}
	return r.MultipartForm, nil
}

func fromForm(form *multipart.Form) (createRequest, []attachments.TempFile, error) {
	field := func(name string) string {
		if v := form.Value[name]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	var req createRequest
	n, err := strconv.Atoi(strings.TrimSpace(field("standard_number")))
	if err != nil {
		return req, nil, errs.Invalid("standard_number must be an integer")
	}
	req.StandardNumber = n
	req.Title = field("title")
	req.Description = field("description")
	req.Notes = field("notes")

	headers := form.File["files"]
	if len(headers) > limits.MaxFilesPerSubmission {
		return req, nil, errs.Invalid("at most %d files per submission", limits.MaxFilesPerSubmission)
	}
	files := make([]attachments.TempFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, attachments.TempFile{
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return req, files, nil
}
