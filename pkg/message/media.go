package message

import (
	"context"
	"encoding/hex"
	"fmt"

	"go.mau.fi/whatsmeow/proto/waE2E"
)

// DownloadPlaceholder is the text handlers send back when an attachment
// could not be fetched.
const DownloadPlaceholder = "Reply to an audio, image or video. Feature does not apply to text"

// DownloadError is returned by Download instead of raw bytes when the
// attachment is unavailable.
type DownloadError struct {
	Kind Kind
	Err  error
}

func (e *DownloadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("download %s: no attachment", e.Kind)
	}
	return fmt.Sprintf("download %s: %v", e.Kind, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Placeholder returns the user-facing text for the failure.
func (e *DownloadError) Placeholder() string { return DownloadPlaceholder }

// Download fetches this message's attachment. Nothing is fetched until a
// handler calls it.
func (m *Message) Download(ctx context.Context) ([]byte, error) {
	return download(ctx, m.downloader, m.Kind, m.Content)
}

// DownloadQuoted fetches the attachment of the replied-to message.
func (m *Message) DownloadQuoted(ctx context.Context) ([]byte, error) {
	if m.Quoted == nil {
		return nil, &DownloadError{Kind: KindUnknown}
	}
	return download(ctx, m.downloader, m.Quoted.Kind, m.Quoted.Content)
}

func download(ctx context.Context, d Downloader, kind Kind, content *waE2E.Message) ([]byte, error) {
	if !kind.IsMedia() || content == nil {
		return nil, &DownloadError{Kind: kind}
	}
	if d == nil {
		return nil, &DownloadError{Kind: kind, Err: fmt.Errorf("no downloader attached")}
	}
	data, err := d.DownloadMedia(ctx, content)
	if err != nil {
		return nil, &DownloadError{Kind: kind, Err: err}
	}
	return data, nil
}

// StickerHash returns the hex file hash identifying a sticker, or "".
func StickerHash(content *waE2E.Message) string {
	sum := content.GetStickerMessage().GetFileSHA256()
	if len(sum) == 0 {
		return ""
	}
	return hex.EncodeToString(sum)
}

// MediaInfo summarizes an attachment for the cases where it cannot be
// re-sent.
type MediaInfo struct {
	Kind     Kind
	Mimetype string
	FileName string
	Size     uint64
	Seconds  uint32
	Width    uint32
	Height   uint32
	Caption  string
	PTT      bool
}

// Describe extracts MediaInfo from content.
func Describe(content *waE2E.Message) MediaInfo {
	info := MediaInfo{Kind: kindOf(content)}
	switch info.Kind {
	case KindImage:
		im := content.GetImageMessage()
		info.Mimetype, info.Size, info.Caption = im.GetMimetype(), im.GetFileLength(), im.GetCaption()
		info.Width, info.Height = im.GetWidth(), im.GetHeight()
	case KindVideo:
		vm := content.GetVideoMessage()
		info.Mimetype, info.Size, info.Caption = vm.GetMimetype(), vm.GetFileLength(), vm.GetCaption()
		info.Seconds, info.Width, info.Height = vm.GetSeconds(), vm.GetWidth(), vm.GetHeight()
	case KindAudio:
		am := content.GetAudioMessage()
		info.Mimetype, info.Size, info.Seconds, info.PTT = am.GetMimetype(), am.GetFileLength(), am.GetSeconds(), am.GetPTT()
	case KindDocument:
		dm := content.GetDocumentMessage()
		info.Mimetype, info.Size, info.Caption, info.FileName = dm.GetMimetype(), dm.GetFileLength(), dm.GetCaption(), dm.GetFileName()
	case KindSticker:
		sm := content.GetStickerMessage()
		info.Mimetype, info.Size = sm.GetMimetype(), sm.GetFileLength()
		info.Width, info.Height = sm.GetWidth(), sm.GetHeight()
	}
	return info
}
