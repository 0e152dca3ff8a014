package bot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iddcare/carebot/internal/index"
	"github.com/iddcare/carebot/internal/llm"
	"github.com/iddcare/carebot/internal/log"
	"github.com/iddcare/carebot/internal/retrieval"
	"github.com/iddcare/carebot/internal/safety"
)

type fakeRetriever struct {
	hits  []retrieval.Hit
	err   error
	calls int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ int) ([]retrieval.Hit, error) {
	f.calls++
	return f.hits, f.err
}

type fakeProvider struct {
	reply string
	err   error
	calls int
	msgs  []llm.Message
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.calls++
	f.msgs = msgs
	return f.reply, f.err
}

func sleepHits() []retrieval.Hit {
	return []retrieval.Hit{
		{
			Score: 0.92,
			Text:  "Obstructive sleep apnea is common in children with Down Syndrome.",
			Meta: index.Chunk{
				Title:      "Sleep disorders in Down Syndrome",
				Authors:    "Breslin et al.",
				Year:       "2014",
				SourceFile: "breslin2014.pdf",
				ChunkID:    3,
			},
		},
		{
			Score: 0.71,
			Text:  "Consistent bedtime routines improve sleep onset.",
			Meta: index.Chunk{
				Title:      "Behavioral sleep interventions",
				Authors:    "Stores & Stores",
				Year:       "2013",
				SourceFile: "stores2013.pdf",
				ChunkID:    1,
			},
		},
	}
}

func TestChatEmptyQuerySkipsPipeline(t *testing.T) {
	ret := &fakeRetriever{}
	prov := &fakeProvider{}
	e := New(ret, prov, log.NewNop())

	resp, err := e.Chat(context.Background(), "   \n\t ")
	require.NoError(t, err)

	assert.Equal(t, EmptyQueryResponse, resp.Answer)
	assert.Empty(t, resp.Citations)
	assert.NotNil(t, resp.Citations)
	assert.Zero(t, ret.calls)
	assert.Zero(t, prov.calls)
}

func TestChatSmalltalkShortCircuits(t *testing.T) {
	ret := &fakeRetriever{hits: sleepHits()}
	prov := &fakeProvider{reply: "should not be used"}
	e := New(ret, prov, log.NewNop())

	resp, err := e.Chat(context.Background(), "thanks so much")
	require.NoError(t, err)

	assert.Contains(t, resp.Answer, "You're very welcome")
	assert.NotNil(t, resp.Citations)
	assert.Empty(t, resp.Citations)
	assert.Zero(t, ret.calls, "smalltalk must not trigger retrieval")
	assert.Zero(t, prov.calls, "smalltalk must not trigger generation")
}

func TestChatSmalltalkStillGetsCrisisPreface(t *testing.T) {
	e := New(&fakeRetriever{}, &fakeProvider{}, log.NewNop())

	resp, err := e.Chat(context.Background(), "thank you, but he is NOT RESPONSIVE")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Answer, safety.CrisisMessage))
	assert.Contains(t, resp.Answer, "You're very welcome")
}

func TestChatAnswersWithCitations(t *testing.T) {
	ret := &fakeRetriever{hits: sleepHits()}
	prov := &fakeProvider{reply: "Try a consistent bedtime routine."}
	e := New(ret, prov, log.NewNop())

	resp, err := e.Chat(context.Background(), "My child has trouble sleeping through the night.")
	require.NoError(t, err)

	assert.Equal(t, "Try a consistent bedtime routine.", resp.Answer)
	require.Len(t, resp.Citations, 2)
	assert.Equal(t, "Sleep disorders in Down Syndrome", resp.Citations[0].Title)
	assert.Equal(t, float32(0.92), resp.Citations[0].Score)
	assert.Equal(t, "Behavioral sleep interventions", resp.Citations[1].Title)
	assert.Greater(t, resp.Citations[0].Score, resp.Citations[1].Score)
	assert.Equal(t, 1, ret.calls)
	assert.Equal(t, 1, prov.calls)

	// The generated prompt carries the question and the grounding context.
	last := prov.msgs[len(prov.msgs)-1]
	assert.Contains(t, last.Content, "Caregiver question: My child has trouble sleeping through the night.")
	assert.Contains(t, last.Content, "Sleep disorders in Down Syndrome")
}

func TestChatPrependsCrisisMessage(t *testing.T) {
	ret := &fakeRetriever{hits: sleepHits()}
	prov := &fakeProvider{reply: "Please see a clinician."}
	e := New(ret, prov, log.NewNop())

	resp, err := e.Chat(context.Background(), "He had a seizure during sleep, what should I watch for?")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.Answer, safety.CrisisMessage+"\n\n"))
	assert.Contains(t, resp.Answer, "Please see a clinician.")
	require.Len(t, resp.Citations, 2)
}

func TestChatGenerationErrorKeepsCitations(t *testing.T) {
	ret := &fakeRetriever{hits: sleepHits()}
	prov := &fakeProvider{err: errors.New("provider down")}
	e := New(ret, prov, log.NewNop())

	resp, err := e.Chat(context.Background(), "My child wakes at night, what should we try?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")

	require.Len(t, resp.Citations, 2, "citations survive a failed generation")
	assert.Empty(t, resp.Answer)
}

func TestChatRetrievalErrorPropagates(t *testing.T) {
	ret := &fakeRetriever{err: errors.New("index unavailable")}
	prov := &fakeProvider{}
	e := New(ret, prov, log.NewNop())

	_, err := e.Chat(context.Background(), "My child wakes at night, what should we try?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unavailable")
	assert.Zero(t, prov.calls)
}
