// Package export packages a finished production's deliverables into its
// export directory: the rendered video plus the text companions the creator
// uploads alongside it.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"reelpipe/internal/queue"
	"reelpipe/internal/textutil"
)

// Package writes the selected deliverables for item under outputRoot and
// returns the export directory. The directory is named from the best
// available title, falling back to the item id, and suffixed with a short id
// so repeated exports of same-titled productions never collide.
func Package(item *queue.Item, outputRoot string, opts queue.ExportOptions) (string, error) {
	if item == nil {
		return "", fmt.Errorf("nil item")
	}
	dir := filepath.Join(outputRoot, exportDirName(item))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	if opts.Video && item.FinalVideoPath != "" {
		target := filepath.Join(dir, videoFileName(item))
		if err := copyFile(item.FinalVideoPath, target); err != nil {
			return "", fmt.Errorf("export video: %w", err)
		}
	}
	if opts.Metadata {
		if err := writeText(dir, "metadata.txt", metadataText(item)); err != nil {
			return "", err
		}
	}
	if opts.SEO && item.SEO != nil {
		if err := writeText(dir, "seo.txt", seoText(item.SEO)); err != nil {
			return "", err
		}
	}
	if opts.ThumbnailPrompt && item.ThumbnailPrompt != "" {
		if err := writeText(dir, "thumbnail_prompt.txt", item.ThumbnailPrompt+"\n"); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func exportDirName(item *queue.Item) string {
	slug := textutil.Slug(bestTitle(item))
	suffix := item.ID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return slug + "-" + suffix
}

func bestTitle(item *queue.Item) string {
	if item.SEO != nil && item.SEO.Title != "" {
		return item.SEO.Title
	}
	if item.GeneratedTitle != "" {
		return item.GeneratedTitle
	}
	return "production"
}

func videoFileName(item *queue.Item) string {
	ext := filepath.Ext(item.FinalVideoPath)
	if ext == "" {
		ext = ".mp4"
	}
	if item.SEO != nil && item.SEO.Filename != "" {
		name := textutil.SanitizeFileName(item.SEO.Filename)
		if name != "" {
			if filepath.Ext(name) == "" {
				name += ext
			}
			return name
		}
	}
	return textutil.Slug(bestTitle(item)) + ext
}

func metadataText(item *queue.Item) string {
	var b strings.Builder
	if item.GeneratedTitle != "" {
		fmt.Fprintf(&b, "Title: %s\n", item.GeneratedTitle)
	}
	if item.GeneratedDescription != "" {
		fmt.Fprintf(&b, "\n%s\n", item.GeneratedDescription)
	}
	if b.Len() == 0 {
		b.WriteString("No metadata generated.\n")
	}
	return b.String()
}

func seoText(seo *queue.SEOData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", seo.Title)
	fmt.Fprintf(&b, "Main keyword: %s\n", seo.MainKeyword)
	if len(seo.SecondaryKeywords) > 0 {
		fmt.Fprintf(&b, "Secondary keywords: %s\n", strings.Join(seo.SecondaryKeywords, ", "))
	}
	if len(seo.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(seo.Tags, ", "))
	}
	if seo.Platform != "" {
		fmt.Fprintf(&b, "Platform: %s\n", seo.Platform)
	}
	if seo.Channel != "" {
		fmt.Fprintf(&b, "Channel: %s\n", seo.Channel)
	}
	if seo.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", seo.Description)
	}
	return b.String()
}

func writeText(dir, name, content string) error {
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	written, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	info, err := os.Stat(src)
	if err == nil && written != info.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("short copy: wrote %d of %d bytes", written, info.Size())
	}
	return nil
}
