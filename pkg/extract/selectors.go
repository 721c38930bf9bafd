package extract

// Selectors of the site's rendered markup. Alternatives separated by commas
// cover the layouts seen across site revisions.
const (
	SelNoteContainer = "#noteContainer"
	SelTitle         = "#detail-title"
	SelDesc          = "#detail-desc"
	SelTags          = `a.tag, a[href*="search_result"]`
	SelImages        = ".media-container .swiper-slide img, .note-content img, #noteContainer .note-slider-img"
	SelVideos        = ".media-container video, .media-container source, .note-content video, #noteContainer video, #noteContainer source"
	SelAuthor        = ".author-wrapper .name, .author-wrapper a"
	SelEngageBar     = ".engage-bar"
	SelLikes         = ".like-wrapper .count, .like-wrapper span"
	SelCollects      = ".collect-wrapper .count, .collect-wrapper span"
	SelChats         = ".chat-wrapper .count, .chat-wrapper span"
	SelPublishDate   = "#noteContainer .date, #noteContainer .bottom-container .date"
	SelLocation      = "#noteContainer .ip-container, #noteContainer .location"

	SelCommentScroller = ".note-scroller"
	SelComments        = ".comments-el .parent-comment, .comments-el .comment-item"
	SelCommentAuthor   = "a.name, .name"
	SelCommentContent  = ".content, .note-text"
	SelCommentDate     = ".date"
	SelCommentLikes    = ".like-count, .count"
	SelReplies         = ".sub-comment-item, .reply-item"
	SelExpand          = `.show-more, [class*="expand"], .more-comment`
	SelEndMarker       = ".end-container"

	SelSearchFeed   = ".feeds-container"
	SelSearchCards  = "section.note-item"
	SelCardTitle    = ".title"
	SelCardAuthor   = ".author"
	SelCardName     = ".name"
	SelCardNameAlt  = "div div"
	SelCardLikes    = ".count"
	SelCardCoverURL = "a.cover"
)
