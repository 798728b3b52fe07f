package meta

import (
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/John-Robertt/bbbdl/internal/domain"
)

// deskSharePlaceholder 是覆盖层中代表“屏幕共享”时段的占位图片，不是幻灯片。
const deskSharePlaceholder = "deskshare.png"

// Overlay 是 shapes.svg 的归一化结果。
type Overlay struct {
	Slides []domain.SlideRecord

	// ImageURLs / TextURLs 去重且保持首次出现的顺序。
	ImageURLs []string
	TextURLs  []string
}

// ParseOverlay 解析幻灯片覆盖层文档。prefixURL 为 <base>/presentation/<meeting-id>。
//
// 规则：
// - 只看根元素下的 image；无 image 时得到空 Overlay
// - id 为文件名去扩展名；in/out 为秒，转毫秒
// - image 缺 href/in/out/width/height 时返回 *domain.MissingAssetError
// - out <= in 的区间不产生 SlideRecord（图片仍会下载）
func ParseOverlay(data []byte, prefixURL string) (Overlay, error) {
	root, err := parseTree(data)
	if err != nil {
		return Overlay{}, &domain.ParseError{File: "shapes.svg", Err: err}
	}

	prefix := strings.TrimRight(prefixURL, "/")
	var out Overlay
	seenImg := map[string]struct{}{}
	seenText := map[string]struct{}{}

	for i, img := range root.children("image") {
		href, ok := img.attr("href")
		if !ok {
			return Overlay{}, missingImageAttr(i, "href")
		}
		filename := path.Base(href)
		if filename == deskSharePlaceholder {
			continue
		}

		imageURL := joinURL(prefix, href)
		if _, dup := seenImg[imageURL]; !dup {
			seenImg[imageURL] = struct{}{}
			out.ImageURLs = append(out.ImageURLs, imageURL)
		}
		if text, ok := img.attr("text"); ok {
			textURL := joinURL(prefix, text)
			if _, dup := seenText[textURL]; !dup {
				seenText[textURL] = struct{}{}
				out.TextURLs = append(out.TextURLs, textURL)
			}
		}

		inSec, err := numAttr(img, i, "in")
		if err != nil {
			return Overlay{}, err
		}
		outSec, err := numAttr(img, i, "out")
		if err != nil {
			return Overlay{}, err
		}
		width, err := numAttr(img, i, "width")
		if err != nil {
			return Overlay{}, err
		}
		height, err := numAttr(img, i, "height")
		if err != nil {
			return Overlay{}, err
		}
		if width <= 0 || height <= 0 {
			return Overlay{}, &domain.ParseError{
				File: "shapes.svg",
				Err:  errors.Errorf("第 %d 个 image 尺寸非法：%vx%v", i+1, width, height),
			}
		}

		rec := domain.SlideRecord{
			ID:     strings.TrimSuffix(filename, path.Ext(filename)),
			File:   "slides/" + filename,
			InMs:   secondsToMs(inSec),
			OutMs:  secondsToMs(outSec),
			Width:  width,
			Height: height,
		}
		if rec.InMs < 0 || rec.OutMs <= rec.InMs {
			continue
		}
		out.Slides = append(out.Slides, rec)
	}
	return out, nil
}

func numAttr(img *node, index int, name string) (float64, error) {
	raw, ok := img.attr(name)
	if !ok {
		return 0, missingImageAttr(index, name)
	}
	f, err := number(raw)
	if err != nil {
		return 0, &domain.ParseError{
			File: "shapes.svg",
			Err:  errors.Wrapf(err, "第 %d 个 image 的 %s 不是数字", index+1, name),
		}
	}
	return f, nil
}

func missingImageAttr(index int, attr string) error {
	return &domain.MissingAssetError{
		Asset:  "shapes.svg",
		Detail: fmt.Sprintf("第 %d 个 image 缺少 %s", index+1, attr),
	}
}

func joinURL(prefix, rel string) string {
	return prefix + "/" + strings.TrimLeft(rel, "/")
}
