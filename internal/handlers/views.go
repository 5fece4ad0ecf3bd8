package handlers

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/a-h/templ"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

func indexPage(videos []models.Video) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}
		if len(videos) == 0 {
			if _, err := io.WriteString(w, `<p class="empty">No videos uploaded yet.</p>`); err != nil {
				return err
			}
		} else {
			if _, err := io.WriteString(w, `<table><thead><tr><th>Name</th><th>Uploaded</th><th>Duration</th><th>Status</th><th>Transcript</th></tr></thead><tbody>`); err != nil {
				return err
			}
			for _, v := range videos {
				if err := videoRow(v).Render(ctx, w); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, `</tbody></table>`); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, pageFoot)
		return err
	})
}

func videoRow(v models.Video) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		id := templ.EscapeString(v.ID)
		links := "-"
		if v.Status == models.StatusCompleted {
			links = fmt.Sprintf(`<a href="/transcript/%[1]s?format=text">text</a> <a href="/transcript/%[1]s?format=subtitle">srt</a>`, id)
		}
		_, err := fmt.Fprintf(w,
			`<tr data-video-id="%s"><td>%s</td><td>%s</td><td>%s</td><td class="status">%s</td><td>%s</td></tr>`,
			id,
			templ.EscapeString(v.Name),
			v.UploadDate.Format("2006-01-02 15:04"),
			formatDuration(v.Duration),
			templ.EscapeString(statusLabel(v)),
			links,
		)
		return err
	})
}

func statusLabel(v models.Video) string {
	switch v.Status {
	case models.StatusUploading:
		return fmt.Sprintf("uploading %d%%", v.UploadProgress)
	case models.StatusProcessing:
		return fmt.Sprintf("processing %d%%", v.ProcessingProgress)
	case models.StatusError:
		if v.Error != "" {
			return "error: " + v.Error
		}
	}
	return string(v.Status)
}

func formatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "-"
	}
	total := int(seconds + 0.5)
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

const pageHead = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Video Transcripts</title>
<style>
body{font-family:system-ui,sans-serif;margin:2rem;max-width:60rem}
table{border-collapse:collapse;width:100%}
th,td{text-align:left;padding:.4rem;border-bottom:1px solid #ddd}
.empty{color:#666}
</style>
</head>
<body>
<h1>Video Transcripts</h1>
<form id="upload" action="/upload" method="post" enctype="multipart/form-data">
<input type="file" name="video" accept="video/*" required>
<button type="submit">Upload</button>
</form>
<p id="upload-status"></p>
`

const pageFoot = `<script>
document.getElementById("upload").addEventListener("submit", async (e) => {
  e.preventDefault();
  const status = document.getElementById("upload-status");
  const res = await fetch("/upload", {method: "POST", body: new FormData(e.target)});
  const body = await res.json();
  if (!res.ok) { status.textContent = body.error; return; }
  const proto = location.protocol === "https:" ? "wss://" : "ws://";
  const ws = new WebSocket(proto + location.host + body.ws_url);
  ws.onmessage = (m) => {
    const msg = JSON.parse(m.data);
    if (msg.type === "progress") {
      const p = msg.progress;
      status.textContent = p.status + " " + (p.status === "uploading" ? p.upload_progress : p.processing_progress) + "%";
      if (p.status === "completed" || p.status === "error") { ws.close(); location.reload(); }
    } else if (msg.type === "notification") {
      status.textContent = msg.notification.title + ": " + msg.notification.description;
    }
  };
});
</script>
</body>
</html>
`
