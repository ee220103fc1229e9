package app

import (
	"github.com/Zentik-notifier/backend-sub001/internal/parser"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/emqx"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/expo"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/github"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/instatus"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/railway"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/servarr"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/statuspage"
	"github.com/Zentik-notifier/backend-sub001/internal/parser/statuspal"
)

// The compiled-in parser set. Adding a source means adding a constructor here.
func newGithub() parser.Parser     { return github.New() }
func newRailway() parser.Parser    { return railway.New() }
func newServarr() parser.Parser    { return servarr.New() }
func newExpo() parser.Parser       { return expo.New() }
func newEMQX() parser.Parser       { return emqx.New() }
func newStatuspage() parser.Parser { return statuspage.New() }
func newInstatus() parser.Parser   { return instatus.New() }
func newStatuspal() parser.Parser  { return statuspal.New() }
