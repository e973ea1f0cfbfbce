package signals

import (
	"bytes"
	"encoding/binary"
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Metadata rules.
const (
	exifBonus           = 10
	metadataPenalty     = 5 // per suspicious metadata finding
	minAspectRatio      = 0.1
	maxAspectRatio      = 10.0
	minCompressionRatio = 0.01 // encoded bytes per raw RGB byte
	maxCompressionRatio = 1.0
	largeImageBytes     = 8 << 20
)

// Manipulation heuristic weights. Their sum is halved before it is subtracted.
const (
	artifactWeight      = 20
	edgeWeight          = 25
	colorWeight         = 20
	noiseWeight         = 15
	maxSampleSide       = 256
	edgeThreshold       = 40.0
	edgeGrid            = 4
	edgeSpreadThreshold = 0.5
	minColorDiversity   = 0.1
	minNoiseLevel       = 1.0
	blockinessRatio     = 1.5
	minBlockDiff        = 2.0
	blockScanSide       = 512
)

// MetadataReport lists the metadata findings for one image.
type MetadataReport struct {
	HasEXIF          bool
	Width, Height    int
	Format           string
	AspectRatio      float64
	CompressionRatio float64
	Findings         []string
}

// Delta is the metadata contribution to the forensics score.
func (m MetadataReport) Delta() int {
	d := -metadataPenalty * len(m.Findings)
	if m.HasEXIF {
		d += exifBonus
	}
	return d
}

// InspectMetadata checks the embedded metadata and the size/shape of an encoded image.
func InspectMetadata(data []byte, cfg image.Config, format string) MetadataReport {
	r := MetadataReport{
		HasEXIF: hasEXIF(data, format),
		Width:   cfg.Width,
		Height:  cfg.Height,
		Format:  format,
	}
	if !r.HasEXIF {
		r.Findings = append(r.Findings, "missing EXIF metadata")
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		r.AspectRatio = float64(cfg.Width) / float64(cfg.Height)
		if r.AspectRatio < minAspectRatio || r.AspectRatio > maxAspectRatio {
			r.Findings = append(r.Findings, "unusual aspect ratio")
		}
		r.CompressionRatio = float64(len(data)) / float64(cfg.Width*cfg.Height*3)
		if r.CompressionRatio < minCompressionRatio || r.CompressionRatio > maxCompressionRatio {
			r.Findings = append(r.Findings, "extreme compression")
		}
	}
	if len(data) > largeImageBytes {
		r.Findings = append(r.Findings, "unusually large file")
	}
	return r
}

// hasEXIF looks for an APP1 Exif segment in JPEG data or an eXIf chunk in PNG data.
func hasEXIF(data []byte, format string) bool {
	switch format {
	case "jpeg":
		return jpegHasEXIF(data)
	case "png":
		return pngHasEXIF(data)
	}
	return false
}

func jpegHasEXIF(data []byte) bool {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return false
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return false
		}
		marker := data[i+1]
		// Start of scan: metadata segments are over.
		if marker == 0xDA || marker == 0xD9 {
			return false
		}
		size := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if size < 2 || i+2+size > len(data) {
			return false
		}
		if marker == 0xE1 && bytes.HasPrefix(data[i+4:i+2+size], []byte("Exif\x00\x00")) {
			return true
		}
		i += 2 + size
	}
	return false
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

func pngHasEXIF(data []byte) bool {
	if !bytes.HasPrefix(data, pngSignature) {
		return false
	}
	i := len(pngSignature)
	for i+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[i : i+4]))
		chunk := string(data[i+4 : i+8])
		switch chunk {
		case "eXIf":
			return true
		case "IDAT", "IEND":
			// eXIf must precede image data.
			return false
		}
		i += 12 + length
	}
	return false
}

// ManipulationReport holds the statistical manipulation heuristics for one image.
type ManipulationReport struct {
	CompressionArtifacts bool
	InconsistentEdges    bool
	UnnaturalColors      bool
	MissingNoise         bool

	EdgeSpread     float64
	ColorDiversity float64
	NoiseLevel     float64
}

// Score sums the weights of the heuristics that fired.
func (m ManipulationReport) Score() int {
	s := 0
	if m.CompressionArtifacts {
		s += artifactWeight
	}
	if m.InconsistentEdges {
		s += edgeWeight
	}
	if m.UnnaturalColors {
		s += colorWeight
	}
	if m.MissingNoise {
		s += noiseWeight
	}
	return s
}

// Delta is the manipulation contribution to the forensics score.
func (m ManipulationReport) Delta() int {
	return -int(math.Round(float64(m.Score()) / 2))
}

// Flags names the heuristics that fired.
func (m ManipulationReport) Flags() []string {
	var flags []string
	if m.CompressionArtifacts {
		flags = append(flags, "possible compression artifacts")
	}
	if m.InconsistentEdges {
		flags = append(flags, "inconsistent edge density")
	}
	if m.UnnaturalColors {
		flags = append(flags, "unnatural color distribution")
	}
	if m.MissingNoise {
		flags = append(flags, "missing sensor noise")
	}
	return flags
}

// AnalyzePixels runs the manipulation heuristics on a decoded image. Block artifacts are
// only checked for JPEG sources.
func AnalyzePixels(img image.Image, format string) ManipulationReport {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return ManipulationReport{}
	}

	step := max(w, h) / maxSampleSide
	if step < 1 {
		step = 1
	}
	gw, gh := (w+step-1)/step, (h+step-1)/step
	lum := make([][]float64, gh)
	buckets := make(map[int]struct{})
	for gy := 0; gy < gh; gy++ {
		lum[gy] = make([]float64, gw)
		for gx := 0; gx < gw; gx++ {
			c := img.At(b.Min.X+gx*step, b.Min.Y+gy*step)
			lum[gy][gx] = luminance(c.RGBA())
			if cf, ok := colorful.MakeColor(c); ok {
				buckets[colorBucket(cf)] = struct{}{}
			}
		}
	}

	var r ManipulationReport
	samples := gw * gh
	r.ColorDiversity = float64(len(buckets)) / float64(min(samples, colorBuckets))
	r.UnnaturalColors = r.ColorDiversity <= minColorDiversity

	if gw >= 3 && gh >= 3 {
		r.NoiseLevel = laplacianLevel(lum)
		r.MissingNoise = r.NoiseLevel < minNoiseLevel
		r.EdgeSpread = edgeSpread(lum)
		r.InconsistentEdges = r.EdgeSpread > edgeSpreadThreshold
	}
	if format == "jpeg" {
		r.CompressionArtifacts = blocky(img)
	}
	return r
}

func luminance(r, g, b, _ uint32) float64 {
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
}

// 12 hue sectors x 4 chroma bands x 5 lightness bands.
const colorBuckets = 12 * 4 * 5

func colorBucket(c colorful.Color) int {
	hue, chroma, light := c.Hcl()
	hb := int(hue/30) % 12
	cb := min(int(chroma*4), 3)
	lb := min(int(light*5), 4)
	if cb < 0 {
		cb = 0
	}
	if lb < 0 {
		lb = 0
	}
	return (hb*4+cb)*5 + lb
}

func laplacianLevel(lum [][]float64) float64 {
	var sum float64
	n := 0
	for y := 1; y < len(lum)-1; y++ {
		for x := 1; x < len(lum[y])-1; x++ {
			v := 4*lum[y][x] - lum[y-1][x] - lum[y+1][x] - lum[y][x-1] - lum[y][x+1]
			sum += math.Abs(v)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// edgeSpread is the gap between the densest and sparsest cell of an edgeGrid x edgeGrid
// partition, in edge pixels per pixel.
func edgeSpread(lum [][]float64) float64 {
	gh, gw := len(lum)-1, len(lum[0])-1
	var edges, totals [edgeGrid][edgeGrid]int
	for y := 0; y < gh; y++ {
		for x := 0; x < gw; x++ {
			grad := math.Abs(lum[y][x+1]-lum[y][x]) + math.Abs(lum[y+1][x]-lum[y][x])
			cy, cx := y*edgeGrid/gh, x*edgeGrid/gw
			totals[cy][cx]++
			if grad > edgeThreshold {
				edges[cy][cx]++
			}
		}
	}
	lo, hi := 1.0, 0.0
	for cy := range edgeGrid {
		for cx := range edgeGrid {
			if totals[cy][cx] == 0 {
				continue
			}
			d := float64(edges[cy][cx]) / float64(totals[cy][cx])
			lo = math.Min(lo, d)
			hi = math.Max(hi, d)
		}
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}

// blocky compares luminance jumps across 8-pixel block boundaries with jumps inside blocks.
func blocky(img image.Image) bool {
	b := img.Bounds()
	w, h := min(b.Dx(), blockScanSide), min(b.Dy(), blockScanSide)
	if w < 16 || h < 8 {
		return false
	}
	var boundary, interior float64
	var nb, ni int
	for y := 0; y < h; y++ {
		prev := luminance(img.At(b.Min.X, b.Min.Y+y).RGBA())
		for x := 1; x < w; x++ {
			cur := luminance(img.At(b.Min.X+x, b.Min.Y+y).RGBA())
			d := math.Abs(cur - prev)
			if x%8 == 0 {
				boundary += d
				nb++
			} else {
				interior += d
				ni++
			}
			prev = cur
		}
	}
	if nb == 0 || ni == 0 {
		return false
	}
	boundary /= float64(nb)
	interior /= float64(ni)
	return boundary > minBlockDiff && boundary > blockinessRatio*interior
}
