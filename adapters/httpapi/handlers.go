package httpapi

import (
	"context"
	"net/http"

	"godex/domain/core"
	"godex/domain/detest"
	detests "godex/internal/detest"
)

func (s *Server) handleTwoSample(w http.ResponseWriter, r *http.Request) {
	s.serve("two-sample", func(ctx context.Context, req *TestRequest, opts []detests.Option) (*detest.Table, error) {
		x, err := req.matrix()
		if err != nil {
			return nil, err
		}
		res, err := detests.TwoSample(ctx, x, req.Grouping, req.Genes, req.Test, opts...)
		if err != nil {
			return nil, err
		}
		return res.Summary(req.threshold())
	})(w, r)
}

func (s *Server) handlePairwise(w http.ResponseWriter, r *http.Request) {
	s.serve("pairwise", func(ctx context.Context, req *TestRequest, opts []detests.Option) (*detest.Table, error) {
		x, err := req.matrix()
		if err != nil {
			return nil, err
		}
		res, err := detests.Pairwise(ctx, x, req.Grouping, req.Genes, req.Test, opts...)
		if err != nil {
			return nil, err
		}
		th := req.threshold()
		if req.Group0 == "" && req.Group1 == "" {
			return res.Summary(th)
		}
		switch p := res.(type) {
		case *detests.PairwiseLazy:
			return p.SummaryPair([]string{req.Group0}, []string{req.Group1}, th)
		case *detests.PairwiseResult:
			return p.SummaryPair(req.Group0, req.Group1, th)
		default:
			return nil, core.NewConfigError("group0", "pair selection not supported")
		}
	})(w, r)
}

func (s *Server) handleVersusRest(w http.ResponseWriter, r *http.Request) {
	s.serve("versus-rest", func(ctx context.Context, req *TestRequest, opts []detests.Option) (*detest.Table, error) {
		x, err := req.matrix()
		if err != nil {
			return nil, err
		}
		res, err := detests.VersusRest(ctx, x, req.Grouping, req.Genes, req.Test, opts...)
		if err != nil {
			return nil, err
		}
		if req.Group != "" {
			return res.SummaryGroup(req.Group, req.threshold())
		}
		return res.Summary(req.threshold())
	})(w, r)
}
