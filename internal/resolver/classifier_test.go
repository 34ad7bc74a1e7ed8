package resolver

import (
	"testing"

	"github.com/iconidentify/framegrab/internal/domain"
)

func TestIsVideoCandidate(t *testing.T) {
	tests := []struct {
		name string
		resp domain.ObservedResponse
		want bool
	}{
		{
			name: "video content type",
			resp: domain.ObservedResponse{URL: "https://cdn.example.com/x", ContentType: "video/mp4"},
			want: true,
		},
		{
			name: "video content type with parameters",
			resp: domain.ObservedResponse{URL: "https://cdn.example.com/x", ContentType: "video/mp2t; charset=binary"},
			want: true,
		},
		{
			name: "mp4 extension without content type",
			resp: domain.ObservedResponse{URL: "https://video.twimg.com/clip.mp4"},
			want: true,
		},
		{
			name: "playlist extension",
			resp: domain.ObservedResponse{URL: "https://video.twimg.com/master.m3u8?tag=1"},
			want: true,
		},
		{
			name: "ext_tw_video path",
			resp: domain.ObservedResponse{URL: "https://video.twimg.com/ext_tw_video/123/pu/pl/abc", ContentType: "application/octet-stream"},
			want: true,
		},
		{
			name: "amplify_video path",
			resp: domain.ObservedResponse{URL: "https://video.twimg.com/amplify_video/123/vid/abc", ContentType: ""},
			want: true,
		},
		{
			name: "html page",
			resp: domain.ObservedResponse{URL: "https://x.com/example/status/1", ContentType: "text/html"},
			want: false,
		},
		{
			name: "profile image",
			resp: domain.ObservedResponse{URL: "https://pbs.twimg.com/profile_images/1/x.jpg", ContentType: "image/jpeg"},
			want: false,
		},
		{
			name: "graphql api call",
			resp: domain.ObservedResponse{URL: "https://x.com/i/api/graphql/TweetDetail", ContentType: "application/json"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsVideoCandidate(tt.resp); got != tt.want {
				t.Errorf("IsVideoCandidate(%q) = %v, want %v", tt.resp.URL, got, tt.want)
			}
		})
	}
}

func TestClassify_PreservesOrder(t *testing.T) {
	in := []domain.ObservedResponse{
		{URL: "https://x.com/page", ContentType: "text/html"},
		{URL: "https://video.twimg.com/a.mp4"},
		{URL: "https://pbs.twimg.com/img.jpg", ContentType: "image/jpeg"},
		{URL: "https://video.twimg.com/b.m3u8"},
		{URL: "https://video.twimg.com/c.mp4"},
	}

	out := Classify(in)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	want := []string{
		"https://video.twimg.com/a.mp4",
		"https://video.twimg.com/b.m3u8",
		"https://video.twimg.com/c.mp4",
	}
	for i, u := range want {
		if out[i].URL != u {
			t.Errorf("out[%d] = %s, want %s", i, out[i].URL, u)
		}
	}
}

func TestClassify_Empty(t *testing.T) {
	if out := Classify(nil); len(out) != 0 {
		t.Errorf("Classify(nil) = %v, want empty", out)
	}
}
