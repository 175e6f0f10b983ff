package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ai-learning-tracker/tracker/internal/models"
)

// SeedResult counts what Seed wrote.
type SeedResult struct {
	Gurus     int
	Posts     int
	Documents int
}

type samplePost struct {
	guruID  string
	content string
	age     time.Duration
}

func strPtr(s string) *string { return &s }

var sampleGurus = []models.Guru{
	{ID: "guru-andrew-ng", Name: "Andrew Ng", ThreadsHandle: "andrewng", Bio: strPtr("DeepLearning.AI founder, Coursera co-founder.")},
	{ID: "guru-yann-lecun", Name: "Yann LeCun", ThreadsHandle: "ylecun", Bio: strPtr("Chief AI Scientist at Meta. Convolutional networks pioneer.")},
	{ID: "guru-andrej-karpathy", Name: "Andrej Karpathy", ThreadsHandle: "karpathy", Bio: strPtr("Former Tesla AI director, OpenAI founding member.")},
	{ID: "guru-jim-fan", Name: "Jim Fan", ThreadsHandle: "drjimfan", Bio: strPtr("NVIDIA research scientist working on embodied AI.")},
	{ID: "guru-fei-fei-li", Name: "Fei-Fei Li", ThreadsHandle: "drfeifei", Bio: strPtr("Stanford HAI co-director, ImageNet creator.")},
	{ID: "guru-demis-hassabis", Name: "Demis Hassabis", ThreadsHandle: "demishassabis", Bio: strPtr("Google DeepMind CEO. AlphaGo and AlphaFold.")},
}

var samplePosts = []samplePost{
	{"guru-andrew-ng", "AI를 배우는 가장 좋은 방법은 작은 프로젝트를 직접 만들어 보는 것입니다.", 2 * time.Hour},
	{"guru-andrew-ng", "프롬프트 작성 능력은 LLM 시대의 새로운 프로그래밍 스킬입니다.", 24 * time.Hour},
	{"guru-yann-lecun", "Autoregressive LLMs cannot plan. We need world models and self-supervised learning.", 5 * time.Hour},
	{"guru-yann-lecun", "한 번 틀린 토큰은 되돌릴 수 없습니다. 미래의 AI는 계획하고 수정할 수 있어야 합니다.", 48 * time.Hour},
	{"guru-andrej-karpathy", "Software 2.0: we design data and architectures, and optimization writes the program.", 8 * time.Hour},
	{"guru-andrej-karpathy", "GPT를 처음부터 구현해 보세요. 논문을 읽는 것과 구현하는 것은 전혀 다른 경험입니다.", 36 * time.Hour},
	{"guru-jim-fan", "Foundation models plus robotics: generalist agents are coming.", 3 * time.Hour},
	{"guru-jim-fan", "시뮬레이션에서 학습한 정책이 실제 로봇으로 transfer되고 있습니다.", 72 * time.Hour},
	{"guru-fei-fei-li", "AI should augment people, not replace them. Build human-centered AI.", 10 * time.Hour},
	{"guru-demis-hassabis", "AlphaFold showed AI can accelerate science. Drug discovery and materials are next.", 30 * time.Hour},
}

var sampleDocuments = []Document{
	{ID: "doc-transformer", Title: "Attention Is All You Need", Type: models.SourceArxiv, URL: strPtr("https://arxiv.org/abs/1706.03762"),
		Content: "The Transformer replaces recurrence with self-attention, processing the whole sequence in parallel. Multi-head attention, position-wise feed-forward layers and positional encodings are its building blocks."},
	{ID: "doc-gpt", Title: "Language Models are Few-Shot Learners (GPT-3)", Type: models.SourceArxiv, URL: strPtr("https://arxiv.org/abs/2005.14165"),
		Content: "GPT-3 is a 175B parameter autoregressive language model that performs new tasks from a few in-context examples without fine-tuning."},
	{ID: "doc-bert", Title: "BERT: Pre-training of Deep Bidirectional Transformers", Type: models.SourceArxiv, URL: strPtr("https://arxiv.org/abs/1810.04805"),
		Content: "BERT pre-trains a bidirectional Transformer with masked language modeling and next sentence prediction, then fine-tunes it per task."},
	{ID: "doc-rag", Title: "Retrieval-Augmented Generation for Knowledge-Intensive NLP Tasks", Type: models.SourceArxiv, URL: strPtr("https://arxiv.org/abs/2005.11401"),
		Content: "RAG retrieves relevant documents for a query and adds them to the generator's context, reducing hallucination and allowing fresh knowledge with citations."},
	{ID: "doc-diffusion", Title: "Denoising Diffusion Probabilistic Models", Type: models.SourceArxiv, URL: strPtr("https://arxiv.org/abs/2006.11239"),
		Content: "Diffusion models learn to reverse a gradual noising process and generate images by iterative denoising."},
	{ID: "doc-llama", Title: "LLaMA: Open and Efficient Foundation Language Models", Type: models.SourceArxiv, URL: strPtr("https://arxiv.org/abs/2302.13971"),
		Content: "LLaMA shows that smaller models trained on more public tokens can match much larger proprietary models."},
	{ID: "doc-moe", Title: "Mixture of Experts (MoE) Architecture", Type: models.SourceArxiv, URL: strPtr("https://arxiv.org/abs/2101.03961"),
		Content: "Mixture of Experts routes each token to a few expert networks, growing parameters without growing per-token compute."},
	{ID: "doc-rlhf", Title: "Training Language Models with Human Feedback (RLHF)", Type: models.SourceArxiv, URL: strPtr("https://arxiv.org/abs/2203.02155"),
		Content: "RLHF fine-tunes a language model against a reward model learned from human preference comparisons."},
}

// Seed loads the sample gurus, posts and documents. It is idempotent: post
// ids are derived from their content and existing rows are updated.
func (s *SQLiteStore) Seed(now time.Time) (SeedResult, error) {
	var res SeedResult
	for _, g := range sampleGurus {
		if err := s.UpsertGuru(g); err != nil {
			return res, err
		}
		res.Gurus++
	}
	for _, sp := range samplePosts {
		post := models.GuruPost{
			ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte(sp.guruID+"\x00"+sp.content)).String(),
			GuruID:   sp.guruID,
			Content:  sp.content,
			PostedAt: now.Add(-sp.age),
		}
		if err := s.CreatePost(&post); err != nil {
			return res, fmt.Errorf("failed to seed post for %s: %w", sp.guruID, err)
		}
		res.Posts++
	}
	for _, d := range sampleDocuments {
		if err := s.UpsertDocument(d); err != nil {
			return res, err
		}
		res.Documents++
	}
	return res, nil
}
