package extract_test

// samplePage mirrors the markdown rendering of the reviews page: a preamble,
// plain rating-first entries, entries led by a reviewer profile link, and the
// "Load more reviews" trailer.
const samplePage = `# PNM Gardening reviews

Showing latest reviews
- 10

### Back yard transformed!



Posted 4 days ago




Spectacular workmanship and customer service. A great bunch of helpful friendly characters.
My Garden is fully patiod now.



![review attachment](https://storage.googleapis.com/media/user-media/01K7RX.1000073101.thumb.heic?GoogleAccessId=app%40capi.iam&Expires=1766257348&Signature=XVh%2BTe%3D%3D)![review attachment](https://storage.googleapis.com/media/user-media/01K7RY.1000073100.thumb.jpg?Expires=1766257348&Signature=Ykye%3D%3D)

Verified reviewer
Job location: CR4
- [P\
Peter B](https://www.checkatrade.com/profile/068c8134) 8.67

### New garden fence , garden maintenance, planting winter bulbs



Posted 6 days ago




The guys were so willingly to please and to ensure our wishes were met.



Verified reviewer
Job location: SW18
- 10

### Excellent work!

Posted 11 October

The guys were excellent! Will definitely use again, highly recommend. 5 \*

Verified reviewer
Job location: SW2

Load more reviews
`
