package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
)

// ReadResumeOutcome is the decision a ReadResumePolicy returns on a
// mid-stream transient error (spec §4.10).
type ReadResumeOutcome int

const (
	ResumeContinue ReadResumeOutcome = iota
	ResumePermanent
	ResumeExhausted
)

// ReadResumePolicy decides, given the resume count so far, whether a
// mid-stream read should be reissued (spec §4.10).
type ReadResumePolicy interface {
	Decide(resumeCount int, cause error) ReadResumeOutcome
}

// MaxAttemptsResumePolicy is the default ReadResumePolicy: it continues
// for up to MaxAttempts resumes, then reports exhaustion.
type MaxAttemptsResumePolicy struct {
	MaxAttempts int
}

func (p MaxAttemptsResumePolicy) Decide(resumeCount int, _ error) ReadResumeOutcome {
	if resumeCount < p.MaxAttempts {
		return ResumeContinue
	}

	return ResumeExhausted
}

// remainingRange tracks the live body's unconsumed range (spec §3, "Read
// response state").
type remainingRange struct {
	start int64
	limit int64
}

// ReadObject issues a ranged GET and streams the object's body to w,
// verifying checksums end-to-end when the conditions in spec §4.10 all
// hold, and resuming mid-stream after transient body errors per the
// request's ReadResumePolicy (default: 3 attempts).
func (c *Client) ReadObject(ctx context.Context, req ReadRequest, w io.Writer) (ObjectHighlights, error) {
	if err := ValidateReadRange(req.Range); err != nil {
		return ObjectHighlights{}, err
	}

	policy := ReadResumePolicy(MaxAttemptsResumePolicy{MaxAttempts: 3})
	if req.resumePolicy != nil {
		policy = *req.resumePolicy
	}

	resp, highlights, err := c.openRead(ctx, req)
	if err != nil {
		return ObjectHighlights{}, err
	}

	checksumApplicable := isChecksumApplicable(req.Range, resp, highlights)

	var engine *ChecksumEngine
	if checksumApplicable {
		engine = NewChecksumEngine(highlights.CRC32CSet, len(highlights.MD5) > 0)
	}

	remaining := remainingRangeFromResponse(resp, highlights)

	resumeCount := 0

	for {
		n, streamErr := c.streamBody(resp.Body, w, &remaining, engine)
		resp.Body.Close()

		if streamErr == nil {
			if remaining.limit != 0 {
				return ObjectHighlights{}, &Error{Kind: KindShortRead, Got: remaining.limit}
			}

			if engine != nil {
				if err := verifyChecksums(engine, highlights); err != nil {
					return ObjectHighlights{}, err
				}
			}

			return highlights, nil
		}

		if !isTransient(streamErr) {
			return ObjectHighlights{}, streamErr
		}

		outcome := policy.Decide(resumeCount, streamErr)

		switch outcome {
		case ResumeContinue:
			resumeCount++

			c.logger.Warn("resuming read after transient error",
				slog.Int64("bytes_delivered_before_resume", n),
				slog.Int("resume_count", resumeCount),
			)

			resumeReq := req
			resumeReq.Object.Generation = highlights.Generation

			if req.Range.Kind == ReadAll || req.Range.Kind == ReadOffset {
				resumeReq.Range = OffsetRange(remaining.start)
			} else {
				resumeReq.Range = SegmentRange(remaining.start, remaining.limit)
			}

			var resumeErr error

			resp, _, resumeErr = c.openRead(ctx, resumeReq)
			if resumeErr != nil {
				return ObjectHighlights{}, resumeErr
			}

		case ResumePermanent:
			return ObjectHighlights{}, streamErr
		case ResumeExhausted:
			return ObjectHighlights{}, &Error{Kind: KindReadResumeExhausted, Err: streamErr}
		}
	}
}

// openRead issues the GET and projects the response into highlights,
// pinning the generation on first success (spec §4.10).
func (c *Client) openRead(ctx context.Context, req ReadRequest) (*http.Response, ObjectHighlights, error) {
	u, err := readURL(c.baseURL, req.Object, req.Precondition)
	if err != nil {
		return nil, ObjectHighlights{}, err
	}

	headers := map[string]string{}

	if rangeHeader, err := req.Range.rangeHeader(); err != nil {
		return nil, ObjectHighlights{}, err
	} else if rangeHeader != "" {
		headers["Range"] = rangeHeader
	}

	var auth authCache

	resp, err := c.Do(ctx, "read object", true, func(ctx context.Context) (*http.Response, error) {
		return c.doHTTPExpect(ctx, http.MethodGet, u, nil, headers, &auth, isReadResponse)
	})
	if err != nil {
		return nil, ObjectHighlights{}, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, ObjectHighlights{}, bindingError("unexpected read response status %d", resp.StatusCode)
	}

	projected, err := projectReadResponse(resp.Header)
	if err != nil {
		resp.Body.Close()
		return nil, ObjectHighlights{}, err
	}

	highlights := ObjectHighlights{
		Bucket:              req.Object.Bucket,
		Name:                req.Object.Object,
		Generation:          projected.Generation,
		Metageneration:      projected.Metageneration,
		StoredContentLength:  projected.StoredContentLength,
		StoredEncoding:      projected.StoredContentEncoding,
		StorageClass:        projected.StorageClass,
		CRC32C:              projected.DeclaredCRC32C,
		CRC32CSet:           projected.DeclaredCRC32CSet,
		MD5:                 projected.DeclaredMD5,
	}

	return resp, highlights, nil
}

func isReadResponse(code int) bool {
	return code == http.StatusOK || code == http.StatusPartialContent
}

// remainingRangeFromResponse seeds the remaining-range accounting from
// the response's actual status/headers, never from the client's
// requested range (spec §9 decision: a tail request larger than the
// object must not be treated as ShortRead).
func remainingRangeFromResponse(resp *http.Response, highlights ObjectHighlights) remainingRange {
	if resp.StatusCode == http.StatusPartialContent {
		start, end, _, _, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err == nil {
			return remainingRange{start: start, limit: end + 1 - start}
		}
	}

	return remainingRange{start: 0, limit: resp.ContentLength}
}

// streamBody reads body chunks in arrival order, feeding the checksum
// engine and enforcing LongRead/ShortRead bounds (spec §4.10).
func (c *Client) streamBody(body io.Reader, w io.Writer, remaining *remainingRange, engine *ChecksumEngine) (int64, error) {
	buf := make([]byte, 64*1024)

	var delivered int64

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			chunk := buf[:n]

			if int64(n) > remaining.limit {
				return delivered, &Error{Kind: KindLongRead, Expected: remaining.limit, Got: int64(n)}
			}

			if engine != nil {
				engine.Update(remaining.start, chunk)
			}

			if _, writeErr := w.Write(chunk); writeErr != nil {
				return delivered, &Error{Kind: KindIo, Message: "writing to destination", Err: writeErr}
			}

			remaining.start += int64(n)
			remaining.limit -= int64(n)
			delivered += int64(n)
		}

		if readErr == io.EOF {
			return delivered, nil
		}

		if readErr != nil {
			return delivered, &Error{Kind: KindIo, Message: "reading response body", Err: readErr}
		}
	}
}

// isChecksumApplicable implements the five-condition gate of spec §4.10.
func isChecksumApplicable(r ReadRange, resp *http.Response, highlights ObjectHighlights) bool {
	if r.Kind != ReadAll {
		return false
	}

	if resp.StatusCode != http.StatusOK {
		return false
	}

	if !highlights.CRC32CSet && len(highlights.MD5) == 0 {
		return false
	}

	if resp.Uncompressed {
		return false
	}

	if highlights.StoredEncoding == "gzip" && resp.Header.Get("Content-Encoding") != "gzip" {
		return false
	}

	return true
}

// verifyChecksums finalizes engine and compares against the declared
// digests, in the order CRC32C then MD5 (spec §4.10: "mismatch → permanent
// ChecksumMismatch").
func verifyChecksums(engine *ChecksumEngine, highlights ObjectHighlights) error {
	d := engine.Finalize()

	if highlights.CRC32CSet && d.CRC32CSet {
		if err := compareCRC32C(highlights.CRC32C, d.CRC32C); err != nil {
			return err
		}
	}

	if len(highlights.MD5) > 0 && len(d.MD5) > 0 {
		if err := compareMD5(highlights.MD5, d.MD5); err != nil {
			return err
		}
	}

	return nil
}
