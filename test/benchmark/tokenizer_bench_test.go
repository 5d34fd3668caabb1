package benchmark

import (
	"context"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/extract"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
)

var sampleTexts = map[string]string{
	"short": "Ông Nguyễn Văn An đến Hà Nội hôm qua.",
	"medium": `Chiều 12/3, tại Hà Nội, Thủ tướng Phạm Minh Chính đã tiếp đoàn doanh nghiệp
        Nhật Bản do ông Tanaka Hiroshi dẫn đầu. Hai bên trao đổi về hợp tác đầu tư
        tại Đà Nẵng và Hải Phòng, đồng thời thảo luận kế hoạch mở rộng sang Cần Thơ.
        Bộ Kế hoạch và Đầu tư cho biết sẽ hỗ trợ các thủ tục cần thiết.`,
	"long": strings.Repeat(`Theo Tổng cục Thống kê, kim ngạch xuất khẩu của Việt Nam sang Hoa Kỳ
        tăng mạnh trong quý I. Các tỉnh Bình Dương, Đồng Nai và Long An dẫn đầu về thu hút
        vốn đầu tư nước ngoài, trong khi Thành phố Hồ Chí Minh tiếp tục là trung tâm tài chính
        lớn nhất cả nước. Ngân hàng Nhà nước Việt Nam giữ nguyên lãi suất điều hành. `, 20),
}

func heuristicConfig() config.RecognizerConfig {
	cfg := config.Default().Recognizer
	cfg.Backend = extract.BackendHeuristic
	return cfg
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tokenizer.Tokenize(text)
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = tokenizer.Tokenize(text)
		}
	})
}

// BenchmarkChunk measures splitting long text to a recognizer token limit.
func BenchmarkChunk(b *testing.B) {
	text := sampleTexts["long"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = tokenizer.Chunk(text, 500)
	}
}

func BenchmarkHeuristicExtract(b *testing.B) {
	ex, err := extract.New(context.Background(), heuristicConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer ex.Close()
	ctx := context.Background()

	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				if _, err := ex.Extract(ctx, text); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
