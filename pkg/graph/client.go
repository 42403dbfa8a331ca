package graph

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEntityTypes is the entity vocabulary used when none is configured.
var DefaultEntityTypes = []string{"人物", "组织", "地点", "事件", "概念", "技术", "产品", "时间"}

// DefaultRelationshipTypes is the relationship vocabulary used when none is configured.
var DefaultRelationshipTypes = []string{"属于", "位于", "创建", "参与", "相关", "影响", "包含", "合作", "竞争", "继承"}

const (
	defaultTokenEncoder = "o200k_base"
	defaultChunkSize    = 2000
)

// GraphClient splits documents into units and assembles extraction results
// into knowledge graphs.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	tokenEncoder   string
	chunkSize      int
	maxChunkTokens int
	mergeSimilar   bool

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// TokenEncoder names the tiktoken encoding, "o200k_base" by default.
// ChunkSize bounds a unit in runes (default 2000).
// MaxChunkTokens additionally bounds a unit in tokens when > 0.
// DisableMergeSimilar turns off the case-insensitive name merge in Build.
type NewGraphClientParams struct {
	TokenEncoder        string
	ChunkSize           int
	MaxChunkTokens      int
	DisableMergeSimilar bool
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client := graph.NewGraphClient(graph.NewGraphClientParams{
//		ChunkSize:      2000,
//		MaxChunkTokens: 1024,
//	})
//	units, err := client.Chunk(text)
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) *GraphClient {
	encoder := params.TokenEncoder
	if encoder == "" {
		encoder = defaultTokenEncoder
	}
	chunkSize := params.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	return &GraphClient{
		tokenEncoder:   encoder,
		chunkSize:      chunkSize,
		maxChunkTokens: params.MaxChunkTokens,
		mergeSimilar:   !params.DisableMergeSimilar,
	}
}

// ChunkSize returns the rune budget of a unit.
func (g *GraphClient) ChunkSize() int {
	return g.chunkSize
}

func (g *GraphClient) encoding() (*tiktoken.Tiktoken, error) {
	g.encOnce.Do(func() {
		g.enc, g.encErr = tiktoken.GetEncoding(g.tokenEncoder)
	})
	return g.enc, g.encErr
}
