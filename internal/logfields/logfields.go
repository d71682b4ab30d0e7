package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyJobID       = "job_id"
	KeyOrgID       = "org_id"
	KeyVerticalKey = "vertical_key"
	KeyTemplateKey = "template_key"
	KeyExportID    = "export_id"
	KeyStage       = "stage"
	KeyStatus      = "status"
	KeyDurationMS  = "duration_ms"
	KeyPath        = "path"
	KeyCount       = "count"
	KeySite        = "site"
	KeyCommand     = "command"
	KeyError       = "error"
	KeyMethod      = "method"
	KeyHTTPStatus  = "http_status"
	KeyRemoteAddr  = "remote_addr"
)

func JobID(id string) slog.Attr         { return slog.String(KeyJobID, id) }
func OrgID(id string) slog.Attr         { return slog.String(KeyOrgID, id) }
func VerticalKey(k string) slog.Attr    { return slog.String(KeyVerticalKey, k) }
func TemplateKey(k string) slog.Attr    { return slog.String(KeyTemplateKey, k) }
func ExportID(id string) slog.Attr      { return slog.String(KeyExportID, id) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func Status(s string) slog.Attr         { return slog.String(KeyStatus, s) }
func DurationMS(ms int64) slog.Attr     { return slog.Int64(KeyDurationMS, ms) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func Site(s string) slog.Attr           { return slog.String(KeySite, s) }
func Command(c string) slog.Attr        { return slog.String(KeyCommand, c) }
func Method(m string) slog.Attr         { return slog.String(KeyMethod, m) }
func HTTPStatus(code int) slog.Attr     { return slog.Int(KeyHTTPStatus, code) }
func RemoteAddr(a string) slog.Attr     { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// OrDiscard returns l, or a logger that drops everything when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
